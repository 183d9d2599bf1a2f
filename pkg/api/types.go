package api

import "strings"

// Feedback is a user verdict on an assembled response.
type Feedback string

const (
	FeedbackUp   Feedback = "thumbs_up"
	FeedbackDown Feedback = "thumbs_down"
)

// ValidFeedback reports whether f is one of the accepted feedback values.
func ValidFeedback(f Feedback) bool {
	return f == FeedbackUp || f == FeedbackDown
}

// Passage is a retrieved text excerpt supporting an answer. Passages arrive
// wholesale per passages event; the client never merges them incrementally.
type Passage struct {
	ID string `json:"id"`
	// Text holds the ordered body segments; join with spaces for display.
	Text []string `json:"text"`
	// Score is the backend relevance score in [0,1].
	Score    float64             `json:"score"`
	Metadata map[string][]string `json:"metadata,omitempty"`
}

// Body returns the display form of the passage text, segments joined by
// single spaces.
func (p Passage) Body() string {
	return strings.Join(p.Text, " ")
}

// Title returns the first "title" metadata value, or "" when absent.
func (p Passage) Title() string {
	if vs := p.Metadata["title"]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// AssembledResponse is the structured answer built incrementally from one
// session's event stream. Text is append-only and Telemetry merge-only
// until the stream terminates; Passages and RelatedQuestions are replaced
// wholesale by their events. After complete or a terminal error the value
// is frozen.
type AssembledResponse struct {
	SessionID        string         `json:"sessionId"`
	Text             string         `json:"text"`
	Telemetry        map[string]any `json:"telemetry,omitempty"`
	Passages         []Passage      `json:"passages,omitempty"`
	RelatedQuestions []string       `json:"relatedQuestions,omitempty"`
	Feedback         *Feedback      `json:"feedback,omitempty"`
}

// Clone returns a deep enough copy for handing to callers: slices and the
// telemetry map are copied, passage contents are shared (passages are
// immutable once delivered).
func (r *AssembledResponse) Clone() *AssembledResponse {
	if r == nil {
		return nil
	}
	out := &AssembledResponse{
		SessionID: r.SessionID,
		Text:      r.Text,
	}
	if r.Telemetry != nil {
		out.Telemetry = make(map[string]any, len(r.Telemetry))
		for k, v := range r.Telemetry {
			out.Telemetry[k] = v
		}
	}
	if r.Passages != nil {
		out.Passages = append([]Passage(nil), r.Passages...)
	}
	if r.RelatedQuestions != nil {
		out.RelatedQuestions = append([]string(nil), r.RelatedQuestions...)
	}
	if r.Feedback != nil {
		fb := *r.Feedback
		out.Feedback = &fb
	}
	return out
}
