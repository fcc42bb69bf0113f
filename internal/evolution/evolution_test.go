package evolution

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	"gonomen/internal"
	"gonomen/internal/formula"
	"gonomen/internal/testkit"
	"gonomen/internal/validation"
)

func newTestEvolver(t *testing.T) (*Evolver, *validation.Validator) {
	t.Helper()
	kit := testkit.NewTestKit()
	engine, err := formula.NewEngine()
	require.NoError(t, err)
	v, err := validation.NewValidator(engine, kit.DomainDataset(), kit.FeatureExtractor(), validation.WithLogger(internal.Discard))
	require.NoError(t, err)
	return NewEvolver(v, kit.RNGAdapter(), WithLogger(internal.Discard)), v
}

func smallConfig(t domformula.Type) evolution.Config {
	cfg := evolution.DefaultConfig(t, []core.DomainID{"crypto", "bands"})
	cfg.PopulationSize = 8
	cfg.Generations = 6
	cfg.LimitPerDomain = 120
	cfg.Epsilon = 0
	return cfg
}

func TestEvolve_BestFitnessNeverDecreases(t *testing.T) {
	e, _ := newTestEvolver(t)
	h, err := e.Evolve(context.Background(), smallConfig(domformula.Phonetic))
	require.NoError(t, err)

	require.Len(t, h.Generations, 6)
	assert.Equal(t, evolution.StopBudgetExhausted, h.StopReason)
	assert.False(t, h.Converged)

	best := h.BestFitness()
	for i := 1; i < len(best); i++ {
		assert.GreaterOrEqual(t, best[i], best[i-1], "generation %d", i)
	}
	for _, g := range h.Generations {
		for i := 1; i < len(g.Population); i++ {
			assert.GreaterOrEqual(t, g.Population[i-1].Fitness, g.Population[i].Fitness)
		}
		assert.Equal(t, g.Population[0], g.Best)
	}
	assert.Equal(t, best[len(best)-1], h.Best.Fitness)
}

func TestEvolve_Reproducible(t *testing.T) {
	cfg := smallConfig(domformula.Hybrid)

	e1, _ := newTestEvolver(t)
	a, err := e1.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	e2, _ := newTestEvolver(t)
	cfg.Workers = 1
	b, err := e2.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "workers are not part of the identity")
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Generations, b.Generations)
	assert.NoError(t, e1.Reproduce(context.Background(), a))
}

func TestEvolve_DifferentSeedsDiffer(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Structural)
	a, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)
	cfg.Seed++
	b, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Generations[0].Population[0].Definition.Params, b.Generations[0].Population[0].Definition.Params)
}

func TestEvolve_HybridWeightsStayNormalized(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Hybrid)
	cfg.MutationRate = 1
	h, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	for _, g := range h.Generations {
		for _, ind := range g.Population {
			sum := 0.0
			for _, w := range ind.Definition.Params {
				assert.GreaterOrEqual(t, w, 0.0)
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-9, ind.ID)
			assert.NoError(t, ind.Definition.Validate())
		}
	}
}

func TestEvolve_ElitesCarryOver(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Semantic)
	h, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	for i := 1; i < len(h.Generations); i++ {
		prev := make(map[string]evolution.Individual)
		for _, ind := range h.Generations[i-1].Population[:cfg.EliteSize] {
			prev[ind.ID] = ind
		}
		elites := 0
		for _, ind := range h.Generations[i].Population {
			if !ind.Elite {
				continue
			}
			elites++
			parent, ok := prev[ind.ID]
			require.True(t, ok, "elite %s was not in the previous top %d", ind.ID, cfg.EliteSize)
			assert.Equal(t, parent.Definition, ind.Definition)
			assert.Equal(t, parent.Fitness, ind.Fitness)
		}
		assert.Equal(t, cfg.EliteSize, elites)
	}
}

func TestEvolve_Converges(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Frequency)
	cfg.Epsilon = 1
	cfg.Patience = 2
	h, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, evolution.StopConverged, h.StopReason)
	assert.True(t, h.Converged)
	require.Len(t, h.Generations, 3)
	final, ok := h.Final()
	require.True(t, ok)
	assert.True(t, final.Converged)
	assert.Equal(t, 2, final.Stalled)
}

// cancellingValidator cancels the run after a fixed number of scorings.
type cancellingValidator struct {
	Validator
	after  int64
	calls  atomic.Int64
	cancel context.CancelFunc
}

func (c *cancellingValidator) ValidateDefinition(ctx context.Context, corpus *validation.Corpus, def domformula.Definition) (*stats.CrossDomainReport, error) {
	if c.calls.Add(1) == c.after {
		c.cancel()
	}
	return c.Validator.ValidateDefinition(ctx, corpus, def)
}

func TestEvolve_CancelledAtGenerationBoundary(t *testing.T) {
	_, v := newTestEvolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cv := &cancellingValidator{Validator: v, after: 12, cancel: cancel}
	e := NewEvolver(cv, testkit.NewTestKit().RNGAdapter(), WithLogger(internal.Discard))

	cfg := smallConfig(domformula.Phonetic)
	cfg.Generations = 50
	cfg.Workers = 1
	tracker := NewTracker()
	h, err := e.EvolveTracked(ctx, cfg, tracker)
	require.NoError(t, err)

	assert.Equal(t, evolution.StopCancelled, h.StopReason)
	assert.NotEmpty(t, h.Generations)
	assert.Less(t, len(h.Generations), cfg.Generations)
	for _, g := range h.Generations {
		assert.Len(t, g.Population, cfg.PopulationSize)
	}
	p := tracker.Progress()
	assert.False(t, p.Running)
	assert.Equal(t, len(h.Generations), p.Generation)
	assert.Equal(t, 50, p.Generations)
}

func TestEvolve_CancelledBeforeStart(t *testing.T) {
	e, _ := newTestEvolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, err := e.Evolve(ctx, smallConfig(domformula.Phonetic))
	require.NoError(t, err)
	assert.Equal(t, evolution.StopCancelled, h.StopReason)
	assert.Empty(t, h.Generations)
}

func TestEvolve_InvalidConfig(t *testing.T) {
	e, _ := newTestEvolver(t)
	ctx := context.Background()

	cases := map[string]func(*evolution.Config){
		"population":  func(c *evolution.Config) { c.PopulationSize = 1 },
		"generations": func(c *evolution.Config) { c.Generations = 0 },
		"mutation":    func(c *evolution.Config) { c.MutationRate = 1.5 },
		"elite":       func(c *evolution.Config) { c.EliteSize = c.PopulationSize },
		"limit":       func(c *evolution.Config) { c.LimitPerDomain = 0 },
		"domains":     func(c *evolution.Config) { c.Domains = nil },
		"empty id":    func(c *evolution.Config) { c.Domains = []core.DomainID{""} },
		"tournament":  func(c *evolution.Config) { c.TournamentSize = 0 },
	}
	for name, mutateCfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig(domformula.Phonetic)
			mutateCfg(&cfg)
			_, err := e.Evolve(ctx, cfg)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}

	cfg := smallConfig(domformula.Type(42))
	_, err := e.Evolve(ctx, cfg)
	assert.ErrorIs(t, err, core.ErrUnknownFormula)
}

func TestEvolveRuns_SeedsIncrement(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Numerological)
	cfg.Generations = 2
	runs, err := e.EvolveRuns(context.Background(), cfg, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, h := range runs {
		assert.Equal(t, cfg.Seed+int64(i), h.Config.Seed)
	}
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	_, err = e.EvolveRuns(context.Background(), cfg, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestFrozenDefinition(t *testing.T) {
	e, _ := newTestEvolver(t)
	cfg := smallConfig(domformula.Hybrid)
	cfg.Generations = 2
	h, err := e.Evolve(context.Background(), cfg)
	require.NoError(t, err)

	frozen := h.Frozen()
	assert.Equal(t, 2, frozen.Version)
	assert.Equal(t, "hybrid@v2-"+h.ID.String()[:8], frozen.ID)
	assert.Equal(t, h.Best.Definition.Params, frozen.Params)
}

func TestSimplicity(t *testing.T) {
	assert.Equal(t, 1.0, Simplicity(domformula.Default(domformula.Frequency)))
	assert.InDelta(t, 5.0/6, Simplicity(domformula.Default(domformula.Phonetic)), 1e-12, "hue_base sits on its lower bound")

	hybrid := domformula.Definition{Type: domformula.Hybrid, Params: []float64{1, 0, 0, 0, 0}}
	assert.Equal(t, 1.0, Simplicity(hybrid))
	hybrid.Params = []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	assert.Equal(t, 0.0, Simplicity(hybrid))
	hybrid.Params = []float64{0.5, 0.5, 0, 0, 0}
	assert.InDelta(t, 0.75, Simplicity(hybrid), 1e-12)

	specs := domformula.Specs(domformula.Frequency)
	def := domformula.Default(domformula.Frequency)
	def.Params[0] = specs[0].Max
	assert.InDelta(t, 1-1/float64(len(specs)), Simplicity(def), 1e-12)
}

func TestOperatorsRespectBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, ft := range domformula.Types() {
		specs := domformula.Specs(ft)
		for i := 0; i < 200; i++ {
			a := randomDefinition(rng, ft)
			b := randomDefinition(rng, ft)
			child := mutate(rng, crossover(rng, a, b), 1, 0.5)
			require.NoError(t, child.Validate(), "%s", ft)
			for j, v := range child.Params {
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, specs[j].Min)
				assert.LessOrEqual(t, v, specs[j].Max)
			}
		}
	}
}

func TestFitnessWeights(t *testing.T) {
	assert.InDelta(t, 1.0, Fitness(1, 1, 1), 1e-12)
	assert.InDelta(t, 0.7, Fitness(1, 0, 0), 1e-12)
	assert.InDelta(t, 0.2, Fitness(0, 1, 0), 1e-12)
	assert.InDelta(t, 0.1, Fitness(0, 0, 1), 1e-12)
}

func TestTracker_ListenerSeesEverySnapshot(t *testing.T) {
	e, _ := newTestEvolver(t)
	var seen []evolution.Progress
	tracker := NewTrackerWithListener(func(p evolution.Progress) { seen = append(seen, p) })

	cfg := smallConfig(domformula.Frequency)
	cfg.Generations = 3
	h, err := e.EvolveTracked(context.Background(), cfg, tracker)
	require.NoError(t, err)

	require.Len(t, seen, 5, "start, one per generation, finish")
	assert.True(t, seen[0].Running)
	assert.Equal(t, 0, seen[0].Generation)
	for g := 1; g <= 3; g++ {
		assert.Equal(t, g, seen[g].Generation)
	}
	last := seen[len(seen)-1]
	assert.False(t, last.Running)
	assert.Equal(t, h.Best.Fitness, last.BestFitness)
	assert.Equal(t, tracker.Progress(), last)
}
