package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind identifies the type of a server-pushed stream event.
type EventKind string

const (
	EventAnswer    EventKind = "answer"
	EventTelemetry EventKind = "telemetry"
	EventPassages  EventKind = "passages"
	EventRelated   EventKind = "related"
	EventComplete  EventKind = "complete"
	EventError     EventKind = "error"
)

// Kinds lists every event kind a channel can deliver, in no particular
// order. Events carry no sequence numbers on the wire; ordering is arrival
// order only.
var Kinds = []EventKind{
	EventAnswer, EventTelemetry, EventPassages,
	EventRelated, EventComplete, EventError,
}

// KnownKind reports whether k is one of the named protocol events.
func KnownKind(k EventKind) bool {
	switch k {
	case EventAnswer, EventTelemetry, EventPassages, EventRelated, EventComplete, EventError:
		return true
	}
	return false
}

// StreamEvent is one server-pushed event as received on the wire. Data is
// the raw payload; use the Decode helpers to interpret it per kind.
type StreamEvent struct {
	Kind EventKind
	Data []byte
}

// DecodeAnswer extracts the incremental text unit from an answer payload.
// The backend emits either raw text or {"answer": "..."}.
func DecodeAnswer(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil && wrapped.Answer != "" {
			return wrapped.Answer
		}
	}
	return trimmed
}

// DecodeTelemetry extracts the partial key/value map from a telemetry
// payload of the form {"telemetry": {...}}. A bare map is accepted too.
func DecodeTelemetry(data []byte) (map[string]any, error) {
	var wrapped struct {
		Telemetry map[string]any `json:"telemetry"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding telemetry payload: %w", err)
	}
	if wrapped.Telemetry != nil {
		return wrapped.Telemetry, nil
	}
	var bare map[string]any
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("decoding telemetry payload: %w", err)
	}
	return bare, nil
}

// DecodePassages extracts the full passage list from a passages payload
// {"passages": [...]}. The list replaces any earlier one wholesale.
func DecodePassages(data []byte) ([]Passage, error) {
	var wrapped struct {
		Passages []Passage `json:"passages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding passages payload: %w", err)
	}
	return wrapped.Passages, nil
}

// DecodeRelated extracts the follow-up question list from a related
// payload. The backend has emitted two shapes historically:
//
//	{"questions": ["..."]}
//	{"questions": {"related_questions": ["..."]}}
//
// Both are accepted.
func DecodeRelated(data []byte) ([]string, error) {
	var flat struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && flat.Questions != nil {
		return flat.Questions, nil
	}

	var nested struct {
		Questions struct {
			RelatedQuestions []string `json:"related_questions"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("decoding related payload: %w", err)
	}
	return nested.Questions.RelatedQuestions, nil
}

// DecodeStreamError extracts a diagnostic message from an error payload.
// The payload shape is implementation-defined; raw text is used verbatim
// and {"error": "..."} is unwrapped.
func DecodeStreamError(data []byte) string {
	var wrapped struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Error != "" {
		return wrapped.Error
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "stream error"
	}
	return msg
}
