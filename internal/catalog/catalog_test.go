package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/symptom-dx-server/internal/domain"
)

func TestDescribe(t *testing.T) {
	e, ok := Describe("Fungal infection")
	assert.True(t, ok)
	assert.Contains(t, e.Description, "fungus")

	e, ok = Describe("  fungal   INFECTION ")
	assert.True(t, ok)
	assert.Equal(t, domain.DiseaseLabel("Fungal infection"), e.Disease)

	e, ok = Describe("(vertigo) Paroymsal Positional Vertigo")
	assert.True(t, ok)
	assert.Equal(t, domain.DiseaseLabel("(vertigo) Paroymsal  Positional Vertigo"), e.Disease)

	_, ok = Describe("Scurvy")
	assert.False(t, ok)
}

func TestDescriptionFor(t *testing.T) {
	assert.NotEmpty(t, DescriptionFor("Common Cold"))
	assert.Empty(t, DescriptionFor("Unknown"))
}

func TestList(t *testing.T) {
	entries := List()

	assert.Len(t, entries, 41)
	assert.Equal(t, Len(), len(entries))
	for i := 1; i < len(entries); i++ {
		assert.Less(t, string(entries[i-1].Disease), string(entries[i].Disease))
	}
}
