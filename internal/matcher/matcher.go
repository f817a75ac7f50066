// Package matcher finds lexicon symptoms mentioned in free text.
package matcher

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/symptom-dx-server/internal/domain"
)

// MinTokenRunes is the exclusive lower bound on token length for the
// token-level tier. Shorter tokens ("of", "the", "pain") never match alone.
const MinTokenRunes = 3

// Tier identifies which rule matched a symptom.
type Tier int

const (
	TierNone Tier = iota
	TierReadable
	TierIdentifier
	TierToken
)

func (t Tier) String() string {
	switch t {
	case TierReadable:
		return "readable"
	case TierIdentifier:
		return "identifier"
	case TierToken:
		return "token"
	default:
		return "none"
	}
}

// Match returns every lexicon symptom found in text.
//
// For each symptom the first matching tier wins: the readable form as a
// substring, then the raw identifier as a substring, then any readable token
// longer than MinTokenRunes as a substring. Matching is case-insensitive and
// substring based, so a token may hit inside an unrelated word.
func Match(text string, lex *domain.Lexicon) domain.SymptomSet {
	set := make(domain.SymptomSet)
	for id := range MatchDetailed(text, lex) {
		set.Add(id)
	}
	return set
}

// MatchDetailed is Match but also reports which tier hit each symptom.
func MatchDetailed(text string, lex *domain.Lexicon) map[string]Tier {
	found := make(map[string]Tier)
	if lex.Len() == 0 || strings.TrimSpace(text) == "" {
		return found
	}

	lower := cases.Lower(language.Und)
	haystack := lower.String(text)

	for _, s := range lex.Symptoms() {
		if tier := matchSymptom(haystack, s, lower); tier != TierNone {
			found[s.ID()] = tier
		}
	}
	return found
}

func matchSymptom(haystack string, s domain.Symptom, lower cases.Caser) Tier {
	readable := lower.String(s.Readable())
	if readable != "" && strings.Contains(haystack, readable) {
		return TierReadable
	}

	// the identifier is compared as-is; lowercase forms are covered by the
	// readable tier
	if strings.Contains(haystack, s.ID()) {
		return TierIdentifier
	}

	for _, token := range strings.Fields(readable) {
		if utf8.RuneCountInString(token) > MinTokenRunes && strings.Contains(haystack, token) {
			return TierToken
		}
	}
	return TierNone
}
