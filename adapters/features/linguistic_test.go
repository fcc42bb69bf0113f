package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
	domfeatures "gonomen/domain/features"
)

func TestExtract_Bitcoin(t *testing.T) {
	fv, err := NewLinguisticExtractor().Extract("Bitcoin")
	require.NoError(t, err)

	assert.Equal(t, 2.0, fv.Get(domfeatures.SyllableCount))
	assert.Equal(t, 7.0, fv.Get(domfeatures.Length))
	assert.InDelta(t, 3.0/7, fv.Get(domfeatures.VowelRatio), 1e-12)
	assert.InDelta(t, 3.0/7, fv.Get(domfeatures.Harshness), 1e-12)
	assert.InDelta(t, 2.0/7, fv.Get(domfeatures.ConsonantCluster), 1e-12)
	assert.InDelta(t, float64(CategoryTechnology)/6, fv.Get(domfeatures.SemanticCategory), 1e-12)
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewLinguisticExtractor()
	a, err := e.Extract("Hurricane Katrina")
	require.NoError(t, err)
	b, err := e.Extract("Hurricane Katrina")
	require.NoError(t, err)
	assert.Equal(t, a.Map(), b.Map())
}

func TestExtract_FoldsDiacritics(t *testing.T) {
	e := NewLinguisticExtractor()
	a, err := e.Extract("Zoë Müller")
	require.NoError(t, err)
	b, err := e.Extract("zoe muller")
	require.NoError(t, err)
	assert.Equal(t, a.Map(), b.Map())
}

func TestExtract_RejectsEmptyNames(t *testing.T) {
	e := NewLinguisticExtractor()
	for _, name := range []string{"", "   ", "1234", "!!"} {
		_, err := e.Extract(name)
		assert.ErrorIs(t, err, core.ErrInvalidName, "name %q", name)
		assert.True(t, core.IsInputValidationError(err))
	}
}

func TestExtract_AlwaysInRange(t *testing.T) {
	e := NewLinguisticExtractor()
	names := []string{
		"a", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "Supercalifragilisticexpialidocious Maximus",
		"Strength", "Aeiouaeiou", "X", "Q-Tip", "Ethereum Classic Gold Royal King",
	}
	for _, name := range names {
		fv, err := e.Extract(name)
		require.NoError(t, err, name)
		assert.NoError(t, fv.Validate(), name)
	}
}

func TestFold(t *testing.T) {
	got, err := Fold("  Jean-Luc  Picard ")
	require.NoError(t, err)
	assert.Equal(t, "jean luc picard", got)
}
