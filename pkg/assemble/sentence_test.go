package assemble

import (
	"reflect"
	"testing"
)

func TestSentenceBufferFeed(t *testing.T) {
	tests := []struct {
		name        string
		fragments   []string
		want        []string
		wantPartial string
	}{
		{
			name:        "incomplete fragment stays buffered",
			fragments:   []string{"Retrieval augments"},
			want:        nil,
			wantPartial: "Retrieval augments",
		},
		{
			name:      "terminator flushes one sentence",
			fragments: []string{"Retrieval augments", "generation."},
			want:      []string{"Retrieval augments generation."},
		},
		{
			name:        "one fragment can complete several sentences",
			fragments:   []string{"Yes. No! Maybe? Still thinking"},
			want:        []string{"Yes.", "No!", "Maybe?"},
			wantPartial: "Still thinking",
		},
		{
			name:      "terminator runs stay attached",
			fragments: []string{"Really?!", "Wait..."},
			want:      []string{"Really?!", "Wait..."},
		},
		{
			name:        "empty fragments are ignored",
			fragments:   []string{"", "Hi.", ""},
			want:        []string{"Hi."},
			wantPartial: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf SentenceBuffer
			var got []string
			for _, f := range tt.fragments {
				got = append(got, buf.Feed(f)...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sentences = %q, want %q", got, tt.want)
			}
			if buf.Partial() != tt.wantPartial {
				t.Errorf("Partial = %q, want %q", buf.Partial(), tt.wantPartial)
			}
		})
	}
}

func TestSentenceBufferFlush(t *testing.T) {
	var buf SentenceBuffer
	buf.Feed("trailing words without an end")
	if got := buf.Flush(); got != "trailing words without an end" {
		t.Errorf("Flush = %q", got)
	}
	if buf.Partial() != "" {
		t.Errorf("buffer not empty after Flush: %q", buf.Partial())
	}
}
