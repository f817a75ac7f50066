package model

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
)

var testSymptoms = []string{"itching", "skin_rash", "high_fever", "cough"}

// Classes sort to: Allergy=0, Common Cold=1, Fungal infection=2
var testLabels = []string{"Fungal infection", "Allergy", "Common Cold", "Allergy"}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func leaf(values ...float64) Node {
	return Node{Feature: LeafFeature, Value: values}
}

func testForest() *RandomForest {
	return &RandomForest{
		NumClasses:  3,
		NumFeatures: len(testSymptoms),
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: 0, Left: 1, Right: 4},
				{Feature: 2, Left: 2, Right: 3},
				leaf(1, 0, 0),
				leaf(0, 1, 0),
				leaf(0, 0, 1),
			}},
			{Nodes: []Node{
				{Feature: 3, Left: 1, Right: 2},
				leaf(0.5, 0, 0.5),
				leaf(0, 0.8, 0.2),
			}},
		},
	}
}

func testContext(t *testing.T) *ModelContext {
	t.Helper()
	lex, err := domain.NewLexicon(testSymptoms)
	require.NoError(t, err)
	mc, err := NewModelContext("bundle-test", testForest(), NewLabelEncoder(testLabels), lex)
	require.NoError(t, err)
	return mc
}

func vector(t *testing.T, mc *ModelContext, ids ...string) domain.FeatureVector {
	t.Helper()
	vec := make(domain.FeatureVector, mc.Lexicon.Len())
	for _, id := range ids {
		i, ok := mc.Lexicon.Index(id)
		require.True(t, ok, id)
		vec[i] = 1
	}
	return vec
}
