package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymptom_Readable(t *testing.T) {
	assert.Equal(t, "skin rash", Symptom("skin_rash").Readable())
	assert.Equal(t, "itching", Symptom("itching").Readable())
	assert.Equal(t, "dischromic  patches", Symptom("dischromic _patches").Readable())
	assert.Equal(t, "skin_rash", Symptom("skin_rash").ID())
}

func TestNewLexicon(t *testing.T) {
	lex, err := NewLexicon([]string{"itching", "skin_rash", "nodal_skin_eruptions"})
	require.NoError(t, err)

	assert.Equal(t, 3, lex.Len())
	idx, ok := lex.Index("skin_rash")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, Symptom("nodal_skin_eruptions"), lex.At(2))
	assert.False(t, lex.Contains("cough"))
	assert.Equal(t, []string{"itching", "skin_rash", "nodal_skin_eruptions"}, lex.IDs())
}

func TestNewLexicon_Rejects(t *testing.T) {
	_, err := NewLexicon([]string{"itching", "itching"})
	assert.Error(t, err)

	_, err = NewLexicon([]string{"itching", "  "})
	assert.Error(t, err)
}

func TestLexicon_SymptomsReturnsCopy(t *testing.T) {
	lex, err := NewLexicon([]string{"itching", "skin_rash"})
	require.NoError(t, err)

	out := lex.Symptoms()
	out[0] = "mutated"

	assert.Equal(t, Symptom("itching"), lex.At(0))
}

func TestLexicon_NilSafe(t *testing.T) {
	var lex *Lexicon
	assert.Equal(t, 0, lex.Len())
	assert.False(t, lex.Contains("itching"))
	assert.Nil(t, lex.IDs())
}

func TestSymptomSet_Sorted(t *testing.T) {
	lex, err := NewLexicon([]string{"itching", "skin_rash", "cough", "high_fever"})
	require.NoError(t, err)

	set := NewSymptomSet("high_fever", "zeta", "itching", "alpha", "itching")

	assert.Equal(t, 4, set.Len())
	assert.True(t, set.Has("itching"))
	assert.Equal(t, []string{"itching", "high_fever", "alpha", "zeta"}, set.Sorted(lex))
}

func TestKindForFilename(t *testing.T) {
	tests := []struct {
		name string
		kind DocumentKind
		ok   bool
	}{
		{"scan.PDF", DocumentPDF, true},
		{"photo.jpeg", DocumentImage, true},
		{"photo.tiff", DocumentImage, true},
		{"notes.docx", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindForFilename(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestFeatureVector(t *testing.T) {
	v := FeatureVector{1, 0, 1, 0}
	assert.Equal(t, 2, v.Count())
	assert.Equal(t, "1010", v.Key())
}

func TestConfidencePercent(t *testing.T) {
	assert.Equal(t, 87.65, ConfidencePercent(0.876543))
	assert.Equal(t, 100.0, ConfidencePercent(1))
	assert.Equal(t, 0.0, ConfidencePercent(0))
}
