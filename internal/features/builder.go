// Package features turns symptom sets into classifier input vectors.
package features

import (
	"strings"

	"github.com/symptom-dx-server/internal/domain"
)

// Build returns a vector of length lex.Len() with a 1 at every index whose
// symptom is in set. Identifiers outside the lexicon are ignored.
func Build(set domain.SymptomSet, lex *domain.Lexicon) domain.FeatureVector {
	vec := make(domain.FeatureVector, lex.Len())
	for id := range set {
		if i, ok := lex.Index(id); ok {
			vec[i] = 1
		}
	}
	return vec
}

// FromIdentifiers builds a vector from caller-supplied identifiers and returns
// the ones the lexicon did not recognise, in input order without duplicates.
func FromIdentifiers(ids []string, lex *domain.Lexicon) (domain.FeatureVector, []string) {
	set := make(domain.SymptomSet, len(ids))
	var unknown []string
	seen := make(map[string]bool)
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if !lex.Contains(id) {
			if !seen[id] {
				unknown = append(unknown, id)
				seen[id] = true
			}
			continue
		}
		set.Add(id)
	}
	return Build(set, lex), unknown
}

// Selected lists the identifiers set in vec, in lexicon order.
func Selected(vec domain.FeatureVector, lex *domain.Lexicon) []string {
	out := make([]string, 0, vec.Count())
	for i, b := range vec {
		if b != 0 && i < lex.Len() {
			out = append(out, lex.At(i).ID())
		}
	}
	return out
}
