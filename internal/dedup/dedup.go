// Package dedup collapses redundant contact records into one canonical
// record per real-world contact. A deterministic pass groups records by
// exact normalized keys (email, phone, name+organization); a second,
// independent semantic pass catches near-duplicates among records the
// first pass left alone.
package dedup

import (
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// Config tunes the deduplicator. The similarity weights and threshold are
// heuristics, deliberately exposed rather than hardcoded.
type Config struct {
	// SimilarityThreshold is the minimum weighted score for the semantic
	// pass to declare two records the same contact. Default: 0.75.
	SimilarityThreshold float64

	// NameWeight, OrgWeight and PositionWeight blend per-field similarity
	// into the overall score. Defaults: 0.40 / 0.35 / 0.25.
	NameWeight     float64
	OrgWeight      float64
	PositionWeight float64

	// DisableSemantic turns off the fuzzy second pass, leaving only
	// exact-key grouping.
	DisableSemantic bool
}

// DefaultConfig returns the standard deduplication tuning.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.75,
		NameWeight:          0.40,
		OrgWeight:           0.35,
		PositionWeight:      0.25,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.NameWeight <= 0 {
		cfg.NameWeight = def.NameWeight
	}
	if cfg.OrgWeight <= 0 {
		cfg.OrgWeight = def.OrgWeight
	}
	if cfg.PositionWeight <= 0 {
		cfg.PositionWeight = def.PositionWeight
	}
	return cfg
}

// Deduplicator groups and merges contact records.
type Deduplicator struct {
	cfg Config
}

// New creates a deduplicator (zero config fields get defaults).
func New(cfg Config) *Deduplicator {
	return &Deduplicator{cfg: applyDefaults(cfg)}
}

// keys holds the precomputed comparison keys for one record.
type keys struct {
	email string
	phone string
	name  string
	org   string
	empty bool
}

func recordKeys(c model.ContactRecord) keys {
	return keys{
		email: NormalizeEmail(c.Email),
		phone: NormalizePhone(c.Phone),
		name:  NormalizeName(c.Name),
		org:   NormalizeName(c.Organization),
		empty: c.IsEmpty(),
	}
}

// matches reports whether two records share any exact identity key:
// normalized email, normalized phone, or name+organization combined.
func (a keys) matches(b keys) bool {
	if a.empty || b.empty {
		return false
	}
	if a.email != "" && a.email == b.email {
		return true
	}
	if a.phone != "" && a.phone == b.phone {
		return true
	}
	if a.name != "" && a.org != "" && a.name == b.name && a.org == b.org {
		return true
	}
	return false
}

// Deduplicate collapses the input list into one canonical record per
// distinct contact. Input order determines first-seen precedence. Records
// with no name, email, or phone pass through unchanged.
func (d *Deduplicator) Deduplicate(records []model.ContactRecord) []model.ContactRecord {
	if len(records) == 0 {
		return []model.ContactRecord{}
	}

	ks := make([]keys, len(records))
	for i, r := range records {
		ks[i] = recordKeys(r)
	}

	// Deterministic pass: transitive grouping by exact keys. A record
	// matching several existing groups merges them (first-seen order).
	var groups [][]int
	for i := range records {
		var hits []int
		for gi, members := range groups {
			for _, m := range members {
				if ks[i].matches(ks[m]) {
					hits = append(hits, gi)
					break
				}
			}
		}

		switch len(hits) {
		case 0:
			groups = append(groups, []int{i})
		case 1:
			groups[hits[0]] = append(groups[hits[0]], i)
		default:
			merged := groups[hits[0]]
			for _, gi := range hits[1:] {
				merged = append(merged, groups[gi]...)
			}
			merged = append(merged, i)
			groups[hits[0]] = merged
			// Drop the absorbed groups, back to front.
			for k := len(hits) - 1; k >= 1; k-- {
				gi := hits[k]
				groups = append(groups[:gi], groups[gi+1:]...)
			}
		}
	}

	if !d.cfg.DisableSemantic {
		groups = d.semanticPass(records, ks, groups)
	}

	out := make([]model.ContactRecord, 0, len(groups))
	for _, members := range groups {
		out = append(out, mergeGroup(records, members))
	}
	return out
}

// semanticPass merges singleton groups whose records score above the
// similarity threshold. Only records the exact pass left ungrouped are
// considered, so fuzzy matches never dilute exact-identity groups.
func (d *Deduplicator) semanticPass(records []model.ContactRecord, ks []keys, groups [][]int) [][]int {
	var candidates []int // group indices
	for gi, members := range groups {
		if len(members) != 1 {
			continue
		}
		idx := members[0]
		if ks[idx].empty || ks[idx].name == "" {
			continue
		}
		candidates = append(candidates, gi)
	}
	if len(candidates) < 2 {
		return groups
	}

	// Union-find over candidate groups.
	parent := make(map[int]int, len(candidates))
	for _, gi := range candidates {
		parent[gi] = gi
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a := records[groups[candidates[i]][0]]
			b := records[groups[candidates[j]][0]]
			score := d.Similarity(a, b)
			if score < d.cfg.SimilarityThreshold {
				continue
			}
			zap.L().Debug("dedup: semantic match",
				zap.String("a", a.Name),
				zap.String("b", b.Name),
				zap.Float64("score", score),
			)
			ra, rb := find(candidates[i]), find(candidates[j])
			if ra != rb {
				// Attach to the earlier group to preserve input order.
				if ra < rb {
					parent[rb] = ra
				} else {
					parent[ra] = rb
				}
			}
		}
	}

	absorbed := make(map[int]bool)
	for _, gi := range candidates {
		root := find(gi)
		if root == gi {
			continue
		}
		groups[root] = append(groups[root], groups[gi]...)
		absorbed[gi] = true
	}
	if len(absorbed) == 0 {
		return groups
	}

	var out [][]int
	for gi, members := range groups {
		if !absorbed[gi] {
			out = append(out, members)
		}
	}
	return out
}

// mergeGroup builds the canonical record for one group. Singleton groups
// pass through untouched. Members are visited in input order regardless of
// how group merges concatenated them, so first-seen precedence holds.
func mergeGroup(records []model.ContactRecord, members []int) model.ContactRecord {
	if len(members) == 1 {
		return records[members[0]]
	}
	sort.Ints(members)

	var out model.ContactRecord
	seenEmails := make(map[string]bool)
	seenPhones := make(map[string]bool)

	for _, idx := range members {
		r := records[idx]

		// Longer is assumed more complete for textual fields.
		out.Name = longest(out.Name, r.Name)
		out.Organization = longest(out.Organization, r.Organization)
		out.Position = longest(out.Position, r.Position)
		out.City = longest(out.City, r.City)

		if email := NormalizeEmail(r.Email); email != "" && !seenEmails[email] {
			seenEmails[email] = true
			if out.Email == "" {
				out.Email = r.Email
			} else {
				out.OtherEmails = append(out.OtherEmails, r.Email)
			}
		}

		if r.Phone != "" && !seenPhones[r.Phone] {
			seenPhones[r.Phone] = true
			if out.Phone == "" {
				out.Phone = r.Phone
			} else {
				out.OtherPhones = append(out.OtherPhones, r.Phone)
			}
		}

		if r.Confidence > out.Confidence {
			out.Confidence = r.Confidence
		}
		if out.Source == "" {
			out.Source = r.Source
		}
	}

	out.MergedFromCount = len(members)
	return out
}

func longest(cur, candidate string) string {
	if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(cur) {
		return candidate
	}
	return cur
}
