package assemble

import "strings"

// sentenceTerminators end a sentence when they close an answer fragment.
const sentenceTerminators = ".!?"

// SentenceBuffer groups streamed answer fragments into whole sentences,
// so display layers can render complete units instead of raw deltas.
// Not safe for concurrent use; callers feed from a single goroutine.
type SentenceBuffer struct {
	pending strings.Builder
}

// Feed appends a fragment and returns any sentences it completed, in
// order. Text after the last terminator stays buffered.
func (b *SentenceBuffer) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	if b.pending.Len() > 0 {
		b.pending.WriteByte(' ')
	}
	b.pending.WriteString(fragment)

	text := b.pending.String()
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if strings.IndexByte(sentenceTerminators, text[i]) < 0 {
			continue
		}
		// Run of terminators ("?!", "...") belongs to one sentence.
		for i+1 < len(text) && strings.IndexByte(sentenceTerminators, text[i+1]) >= 0 {
			i++
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if start == 0 {
		return nil
	}

	b.pending.Reset()
	b.pending.WriteString(strings.TrimLeft(text[start:], " "))
	return sentences
}

// Partial returns the buffered text that has not yet formed a sentence.
func (b *SentenceBuffer) Partial() string {
	return b.pending.String()
}

// Flush returns the remaining partial text and empties the buffer.
func (b *SentenceBuffer) Flush() string {
	rest := strings.TrimSpace(b.pending.String())
	b.pending.Reset()
	return rest
}
