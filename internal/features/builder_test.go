package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
)

func lexicon(t *testing.T) *domain.Lexicon {
	t.Helper()
	lex, err := domain.NewLexicon([]string{"itching", "skin_rash", "high_fever", "cough"})
	require.NoError(t, err)
	return lex
}

func TestBuild(t *testing.T) {
	lex := lexicon(t)

	vec := Build(domain.NewSymptomSet("cough", "itching", "not_a_symptom"), lex)

	assert.Len(t, vec, lex.Len())
	assert.Equal(t, domain.FeatureVector{1, 0, 0, 1}, vec)
}

func TestBuild_EmptySet(t *testing.T) {
	lex := lexicon(t)

	vec := Build(domain.NewSymptomSet(), lex)

	assert.Len(t, vec, lex.Len())
	assert.Equal(t, 0, vec.Count())
}

func TestFromIdentifiers(t *testing.T) {
	lex := lexicon(t)

	vec, unknown := FromIdentifiers([]string{"high_fever", " cough ", "xyz", "", "xyz", "high_fever"}, lex)

	assert.Equal(t, domain.FeatureVector{0, 0, 1, 1}, vec)
	assert.Equal(t, []string{"xyz"}, unknown)
}

func TestSelected(t *testing.T) {
	lex := lexicon(t)

	assert.Equal(t, []string{"skin_rash", "cough"}, Selected(domain.FeatureVector{0, 1, 0, 1}, lex))
}
