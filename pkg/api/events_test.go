package api

import (
	"reflect"
	"testing"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"raw_text", "Hello", "Hello"},
		{"raw_with_whitespace", "  world.\n", "world."},
		{"wrapped_object", `{"answer":"Hello"}`, "Hello"},
		{"object_without_answer", `{"other":"x"}`, `{"other":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeAnswer([]byte(tt.data)); got != tt.want {
				t.Errorf("DecodeAnswer(%q) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestDecodeTelemetry(t *testing.T) {
	tests := []struct {
		name string
		data string
		want map[string]any
	}{
		{
			name: "wrapped",
			data: `{"telemetry":{"model":"x","results":3.0}}`,
			want: map[string]any{"model": "x", "results": 3.0},
		},
		{
			name: "bare_map",
			data: `{"language":"de"}`,
			want: map[string]any{"language": "de"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTelemetry([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeTelemetry error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeTelemetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeTelemetryMalformed(t *testing.T) {
	if _, err := DecodeTelemetry([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestDecodePassages(t *testing.T) {
	data := `{"passages":[{"id":"p1","text":["First","segment."],"score":0.92,"metadata":{"title":["Doc A"]}}]}`

	got, err := DecodePassages([]byte(data))
	if err != nil {
		t.Fatalf("DecodePassages error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(got))
	}
	p := got[0]
	if p.ID != "p1" || p.Score != 0.92 {
		t.Errorf("unexpected passage: %+v", p)
	}
	if p.Body() != "First segment." {
		t.Errorf("Body() = %q", p.Body())
	}
	if p.Title() != "Doc A" {
		t.Errorf("Title() = %q", p.Title())
	}
}

func TestDecodeRelatedBothShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "flat_list",
			data: `{"questions":["What else?","Why?"]}`,
			want: []string{"What else?", "Why?"},
		},
		{
			name: "nested_related_questions",
			data: `{"questions":{"related_questions":["What else?"]}}`,
			want: []string{"What else?"},
		},
		{
			name: "empty_flat",
			data: `{"questions":[]}`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRelated([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeRelated error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeRelated = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeStreamError(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"wrapped", `{"error":"index unavailable"}`, "index unavailable"},
		{"raw", "backend exploded", "backend exploded"},
		{"empty", "", "stream error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeStreamError([]byte(tt.data)); got != tt.want {
				t.Errorf("DecodeStreamError = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKnownKind(t *testing.T) {
	for _, k := range Kinds {
		if !KnownKind(k) {
			t.Errorf("expected %s to be known", k)
		}
	}
	if KnownKind(EventKind("heartbeat")) {
		t.Error("heartbeat should not be a known kind")
	}
}
