package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	"gonomen/domain/formula"
)

func TestSyntheticDataset_LoadIsPrefixStable(t *testing.T) {
	ctx := context.Background()
	ds := NewTestKit().DomainDataset()

	all, err := ds.Load(ctx, "crypto", 0)
	require.NoError(t, err)
	assert.Len(t, all, 400)

	head, err := ds.Load(ctx, "crypto", 50)
	require.NoError(t, err)
	assert.Equal(t, all[:50], head)

	over, err := ds.Load(ctx, "crypto", 500)
	require.NoError(t, err)
	assert.Len(t, over, 400)

	for _, e := range all {
		assert.NoError(t, e.Validate())
		assert.True(t, e.HasLabel())
		assert.Equal(t, core.DomainID("crypto"), e.Domain)
	}
}

func TestSyntheticDataset_DeterministicAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a, err := NewTestKit().DomainDataset().Load(ctx, "bands", 100)
	require.NoError(t, err)
	b, err := NewTestKit().DomainDataset().Load(ctx, "bands", 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSyntheticDataset_UnknownDomain(t *testing.T) {
	_, err := NewTestKit().DomainDataset().Load(context.Background(), "atlantis", 10)
	assert.ErrorIs(t, err, core.ErrDatasetUnavailable)
}

func TestSyntheticDataset_Domains(t *testing.T) {
	ids, err := NewTestKit().DomainDataset().Domains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.DomainID{"bands", "crypto", "elections", "hurricanes", "surnames"}, ids)
}

func TestRNGAdapter_StreamDeterminism(t *testing.T) {
	ctx := context.Background()
	r := &RNGAdapter{}
	a, _ := r.Stream(ctx, "run", "evolution", "init", 9)
	b, _ := r.Stream(ctx, "run", "evolution", "init", 9)
	c, _ := r.Stream(ctx, "run", "evolution", "mutate", 9)

	av, bv, cv := a.Int63(), b.Int63(), c.Int63()
	assert.Equal(t, av, bv)
	assert.NotEqual(t, av, cv)
}

func TestInMemoryHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryHistoryRepository()

	h := &evolution.History{
		ID:         "h-1",
		Config:     evolution.Config{FormulaType: formula.Phonetic, Seed: 3},
		Best:       evolution.Individual{Fitness: 0.4},
		StopReason: evolution.StopConverged,
	}
	require.NoError(t, repo.Save(ctx, h))
	require.NoError(t, repo.Save(ctx, h))

	got, err := repo.Get(ctx, "h-1")
	require.NoError(t, err)
	assert.Equal(t, *h, *got)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, core.IsNotFoundError(err))

	list, err := repo.List(ctx, formula.Phonetic, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].Seed)

	none, err := repo.List(ctx, formula.Hybrid, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, repo.Save(ctx, &evolution.History{}))
}
