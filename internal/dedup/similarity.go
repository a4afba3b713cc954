package dedup

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// Similarity scores how likely two contacts describe the same person,
// blending name, organization and position closeness. Weights are
// renormalized over the fields present on both records, so a missing
// organization does not drag down an otherwise strong name match.
func (d *Deduplicator) Similarity(a, b model.ContactRecord) float64 {
	type weighted struct {
		a, b   string
		weight float64
	}
	fields := []weighted{
		{NormalizeName(a.Name), NormalizeName(b.Name), d.cfg.NameWeight},
		{NormalizeName(a.Organization), NormalizeName(b.Organization), d.cfg.OrgWeight},
		{NormalizeName(a.Position), NormalizeName(b.Position), d.cfg.PositionWeight},
	}

	var score, totalWeight float64
	for _, f := range fields {
		if f.a == "" || f.b == "" {
			continue
		}
		score += fieldSimilarity(f.a, f.b) * f.weight
		totalWeight += f.weight
	}
	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

// fieldSimilarity is the better of token-set overlap (with initial
// abbreviation awareness, so "м. сидорова" matches "мария сидорова")
// and plain edit-distance similarity.
func fieldSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	overlap := tokenOverlap(a, b)
	edit := levenshtein.Similarity(a, b, nil)
	if overlap > edit {
		return overlap
	}
	return edit
}

func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}

	used := make([]bool, len(bt))
	matches := 0
	for _, ta := range at {
		for j, tb := range bt {
			if used[j] {
				continue
			}
			if tokensMatch(ta, tb) {
				used[j] = true
				matches++
				break
			}
		}
	}

	longer := len(at)
	if len(bt) > longer {
		longer = len(bt)
	}
	return float64(matches) / float64(longer)
}

// tokensMatch reports whether two name tokens refer to the same word,
// treating a single-letter token (an initial, with or without a trailing
// dot) as matching any word starting with that letter.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	return initialMatches(a, b) || initialMatches(b, a)
}

func initialMatches(initial, word string) bool {
	initial = strings.TrimSuffix(initial, ".")
	ri := []rune(initial)
	if len(ri) != 1 {
		return false
	}
	rw := []rune(word)
	return len(rw) > 0 && rw[0] == ri[0]
}
