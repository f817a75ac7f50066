package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Symptom is a canonical snake-case symptom identifier such as "skin_rash".
type Symptom string

// ID returns the identifier exactly as it appears in the training columns.
func (s Symptom) ID() string {
	return string(s)
}

// Readable returns the human-readable form: underscores become spaces and the
// result is lowercased.
func (s Symptom) Readable() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// Lexicon is the ordered symptom vocabulary. Position i is feature index i,
// so the order must match the column order the classifier was trained on.
// A Lexicon is never mutated after construction.
type Lexicon struct {
	symptoms []Symptom
	index    map[string]int
}

// NewLexicon builds a lexicon from identifiers in feature order.
// Blank and duplicate identifiers are rejected.
func NewLexicon(ids []string) (*Lexicon, error) {
	lex := &Lexicon{
		symptoms: make([]Symptom, 0, len(ids)),
		index:    make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("symptom at position %d is blank", i)
		}
		if prev, ok := lex.index[id]; ok {
			return nil, fmt.Errorf("duplicate symptom %q at positions %d and %d", id, prev, i)
		}
		lex.index[id] = len(lex.symptoms)
		lex.symptoms = append(lex.symptoms, Symptom(id))
	}
	return lex, nil
}

// Len returns the number of symptoms, which is also the feature vector length.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.symptoms)
}

// At returns the symptom at feature index i.
func (l *Lexicon) At(i int) Symptom {
	return l.symptoms[i]
}

// Index returns the feature index for id.
func (l *Lexicon) Index(id string) (int, bool) {
	if l == nil {
		return 0, false
	}
	i, ok := l.index[id]
	return i, ok
}

// Contains reports whether id is part of the vocabulary.
func (l *Lexicon) Contains(id string) bool {
	_, ok := l.Index(id)
	return ok
}

// Symptoms returns a copy of the vocabulary in feature order.
func (l *Lexicon) Symptoms() []Symptom {
	if l == nil {
		return nil
	}
	out := make([]Symptom, len(l.symptoms))
	copy(out, l.symptoms)
	return out
}

// IDs returns the identifiers in feature order.
func (l *Lexicon) IDs() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.symptoms))
	for i, s := range l.symptoms {
		out[i] = string(s)
	}
	return out
}

// SymptomSet is an unordered set of symptom identifiers.
type SymptomSet map[string]struct{}

// NewSymptomSet builds a set from ids; duplicates collapse.
func NewSymptomSet(ids ...string) SymptomSet {
	set := make(SymptomSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts id into the set.
func (s SymptomSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s SymptomSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers in the set.
func (s SymptomSet) Len() int {
	return len(s)
}

// Sorted enumerates the set in lexicon order. Identifiers the lexicon does
// not know are appended afterwards in alphabetical order.
func (s SymptomSet) Sorted(lex *Lexicon) []string {
	known := make([]string, 0, len(s))
	var foreign []string
	for id := range s {
		if lex.Contains(id) {
			known = append(known, id)
		} else {
			foreign = append(foreign, id)
		}
	}
	sort.Slice(known, func(i, j int) bool {
		a, _ := lex.Index(known[i])
		b, _ := lex.Index(known[j])
		return a < b
	})
	sort.Strings(foreign)
	return append(known, foreign...)
}
