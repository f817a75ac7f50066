package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
)

func testLexicon(t *testing.T) *domain.Lexicon {
	t.Helper()
	lex, err := domain.NewLexicon([]string{
		"itching",
		"skin_rash",
		"nodal_skin_eruptions",
		"high_fever",
		"cough",
		"joint_pain",
		"stomach_pain",
		"yellowish_skin",
	})
	require.NoError(t, err)
	return lex
}

func TestMatch_Scenario(t *testing.T) {
	lex := testLexicon(t)

	got := Match("Patient has itching, skin rash, and skin eruptions", lex)

	assert.True(t, got.Has("itching"))
	assert.True(t, got.Has("skin_rash"))
	// "eruptions" is a token of nodal_skin_eruptions
	assert.True(t, got.Has("nodal_skin_eruptions"))
	assert.False(t, got.Has("cough"))
}

func TestMatch_Tiers(t *testing.T) {
	lex := testLexicon(t)

	tests := []struct {
		name string
		text string
		id   string
		tier Tier
	}{
		{"readable form", "She reports HIGH FEVER since Monday", "high_fever", TierReadable},
		{"raw identifier", "flags: joint_pain", "joint_pain", TierIdentifier},
		{"long token", "persistent stomach cramps", "stomach_pain", TierToken},
		{"token inside other word", "yellowishness of the eyes", "yellowish_skin", TierToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchDetailed(tt.text, lex)
			assert.Equal(t, tt.tier, got[tt.id])
		})
	}
}

func TestMatch_IdentifierIsCaseSensitive(t *testing.T) {
	lex, err := domain.NewLexicon([]string{"Swollen_Legs"})
	require.NoError(t, err)

	// the lowercased text never contains the mixed-case identifier, so only
	// the token tier can fire
	got := MatchDetailed("flags: Swollen_Legs", lex)
	assert.Equal(t, TierToken, got["Swollen_Legs"])
}

func TestMatch_ShortTokensIgnored(t *testing.T) {
	lex, err := domain.NewLexicon([]string{"back_pain", "red_spots"})
	require.NoError(t, err)

	// "red" is too short; "back", "pain" and "spots" are absent
	got := MatchDetailed("the red car", lex)
	assert.Empty(t, got)

	got = MatchDetailed("pain in the neck", lex)
	assert.Equal(t, TierToken, got["back_pain"])
}

func TestMatch_Idempotent(t *testing.T) {
	lex := testLexicon(t)
	text := "Cough and itching with a mild skin rash"

	first := Match(text, lex)
	second := Match(text, lex)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Sorted(lex), second.Sorted(lex))
}

func TestMatch_EmptyInputs(t *testing.T) {
	lex := testLexicon(t)

	assert.Empty(t, Match("", lex))
	assert.Empty(t, Match("   \n", lex))
	assert.Empty(t, Match("itching", nil))
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "readable", TierReadable.String())
	assert.Equal(t, "none", TierNone.String())
}
