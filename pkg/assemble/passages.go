package assemble

import (
	"sort"
	"strings"

	"github.com/fragend/fragend/pkg/api"
)

// SortKey selects the ordering for SortPassages.
type SortKey string

const (
	// SortByScore orders by relevance score, highest first.
	SortByScore SortKey = "score"

	// SortByRecency orders by the "date" metadata value, newest first
	// (dates are ISO-8601, so the lexicographic order is chronological).
	SortByRecency SortKey = "recency"

	// SortByTitle orders alphabetically by title.
	SortByTitle SortKey = "title"
)

// HighRelevanceThreshold is the percentage score at or above which a
// passage counts as highly relevant.
const HighRelevanceThreshold = 80

// RelevancePercent converts a passage's score to a whole percentage.
func RelevancePercent(p api.Passage) int {
	return int(p.Score * 100)
}

// HighRelevance reports whether the passage clears the display
// threshold for highlighted sources.
func HighRelevance(p api.Passage) bool {
	return RelevancePercent(p) >= HighRelevanceThreshold
}

func passageDate(p api.Passage) string {
	if v := p.Metadata["date"]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// SortPassages returns a copy of passages ordered by key. Ties fall
// back to score so the ordering is stable across equal dates or titles.
func SortPassages(passages []api.Passage, key SortKey) []api.Passage {
	sorted := append([]api.Passage(nil), passages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch key {
		case SortByRecency:
			if da, db := passageDate(a), passageDate(b); da != db {
				return da > db
			}
		case SortByTitle:
			if ta, tb := a.Title(), b.Title(); ta != tb {
				return ta < tb
			}
		}
		return a.Score > b.Score
	})
	return sorted
}

// FilterPassages returns the passages whose title or body contains
// query, case-insensitive. An empty query returns everything.
func FilterPassages(passages []api.Passage, query string) []api.Passage {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]api.Passage(nil), passages...)
	}
	var matched []api.Passage
	for _, p := range passages {
		if strings.Contains(strings.ToLower(p.Title()), query) ||
			strings.Contains(strings.ToLower(p.Body()), query) {
			matched = append(matched, p)
		}
	}
	return matched
}
