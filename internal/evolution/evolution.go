// Package evolution searches formula parameter space with a seeded genetic
// algorithm scored by cross-domain validation.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	"gonomen/internal"
	"gonomen/internal/metrics"
	"gonomen/internal/validation"
	"gonomen/ports"
)

// Validator scores definitions against a prepared corpus.
type Validator interface {
	Prepare(ctx context.Context, domains []core.DomainID, limit int) (*validation.Corpus, error)
	ValidateDefinition(ctx context.Context, corpus *validation.Corpus, def domformula.Definition) (*stats.CrossDomainReport, error)
}

// Evolver runs evolution searches. It is safe for concurrent use; each run
// draws from its own seeded stream.
type Evolver struct {
	validator Validator
	rng       ports.RNGPort
	logger    *internal.Logger
}

// Option customizes an Evolver.
type Option func(*Evolver)

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(e *Evolver) { e.logger = l }
}

// NewEvolver creates an evolver over a validator and RNG source.
func NewEvolver(v Validator, rng ports.RNGPort, opts ...Option) *Evolver {
	e := &Evolver{validator: v, rng: rng, logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("Evolution")
	return e
}

// ValidateConfig checks an evolution config against its struct tags.
func ValidateConfig(cfg evolution.Config) error {
	if !cfg.FormulaType.Valid() {
		return fmt.Errorf("%w: %s", core.ErrUnknownFormula, cfg.FormulaType)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return core.NewConfigError("evolution", err.Error())
	}
	return nil
}

// HistoryID is the deterministic identity of a config. Workers is not part
// of it.
func HistoryID(cfg evolution.Config) (core.HistoryID, error) {
	canonical, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode evolution config: %w", err)
	}
	return core.HistoryID(core.NewDeterministicID(canonical)), nil
}

// Evolve runs one search to completion, convergence or cancellation.
func (e *Evolver) Evolve(ctx context.Context, cfg evolution.Config) (*evolution.History, error) {
	return e.EvolveTracked(ctx, cfg, nil)
}

// EvolveRuns runs independent searches with seeds cfg.Seed+i. A cancelled
// run ends the batch and is returned as the last history.
func (e *Evolver) EvolveRuns(ctx context.Context, cfg evolution.Config, runs int) ([]*evolution.History, error) {
	if runs < 1 {
		return nil, core.NewConfigError("runs", fmt.Sprintf("must be >= 1, got %d", runs))
	}
	out := make([]*evolution.History, 0, runs)
	for i := 0; i < runs; i++ {
		run := cfg
		run.Seed = cfg.Seed + int64(i)
		h, err := e.Evolve(ctx, run)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
		if h.StopReason == evolution.StopCancelled {
			break
		}
	}
	return out, nil
}

// EvolveTracked is Evolve reporting progress to tracker, which may be nil.
// Cancellation is checked only at generation boundaries: a cancelled run
// returns the generations completed so far with StopCancelled and no error.
func (e *Evolver) EvolveTracked(ctx context.Context, cfg evolution.Config, tracker *Tracker) (*evolution.History, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	id, err := HistoryID(cfg)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	tracker.start(cfg.Generations)
	defer tracker.finish()

	history := &evolution.History{ID: id, Config: cfg, Generations: []evolution.Generation{}}
	formulaName := cfg.FormulaType.String()

	corpus, err := e.validator.Prepare(ctx, cfg.Domains, cfg.LimitPerDomain)
	if err != nil {
		if ctx.Err() != nil {
			return e.finish(history, evolution.StopCancelled)
		}
		return nil, err
	}

	rng, err := e.rng.Stream(ctx, id.String(), "evolution", "breeding", cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create breeding stream: %w", err)
	}

	e.logger.Info("run %s: %s, population %d, %d generations, seed %d",
		id, formulaName, cfg.PopulationSize, cfg.Generations, cfg.Seed)

	population := make([]evolution.Individual, cfg.PopulationSize)
	for i := range population {
		population[i] = newIndividual(0, i, randomDefinition(rng, cfg.FormulaType))
	}
	scored := make([]bool, len(population))

	stalled := 0
	for g := 0; g < cfg.Generations; g++ {
		if ctx.Err() != nil {
			return e.finish(history, evolution.StopCancelled)
		}

		// a started generation is always scored in full
		if err := e.evaluate(context.WithoutCancel(ctx), cfg, corpus, population, scored); err != nil {
			return nil, err
		}
		sort.SliceStable(population, func(a, b int) bool {
			return population[a].Fitness > population[b].Fitness
		})

		gen := evolution.Generation{
			Index:       g,
			Population:  append([]evolution.Individual(nil), population...),
			Best:        population[0],
			MeanFitness: meanFitness(population),
		}
		if g > 0 {
			gen.Improvement = gen.Best.Fitness - history.Best.Fitness
			if gen.Improvement < cfg.Epsilon {
				stalled++
			} else {
				stalled = 0
			}
		}
		gen.Stalled = stalled
		gen.Converged = stalled >= cfg.Patience
		if g == 0 || gen.Best.Fitness > history.Best.Fitness {
			history.Best = gen.Best
		}
		history.Generations = append(history.Generations, gen)

		tracker.update(g+1, history.Best.Fitness)
		metrics.ObserveGeneration(formulaName, gen.Best.Fitness)
		e.logger.Debug("run %s gen %d: best=%.4f mean=%.4f stalled=%d",
			id, g, gen.Best.Fitness, gen.MeanFitness, stalled)

		if gen.Converged {
			return e.finish(history, evolution.StopConverged)
		}
		if g == cfg.Generations-1 {
			break
		}
		population, scored = e.breed(rng, cfg, g+1, population)
	}
	return e.finish(history, evolution.StopBudgetExhausted)
}

// evaluate scores unscored individuals in parallel. Results are written by
// index so the outcome does not depend on scheduling.
func (e *Evolver) evaluate(ctx context.Context, cfg evolution.Config, corpus *validation.Corpus, population []evolution.Individual, scored []bool) error {
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i := range population {
		if scored[i] {
			continue
		}
		g.Go(func() error {
			report, err := e.validator.ValidateDefinition(gctx, corpus, population[i].Definition)
			if err != nil {
				return err
			}
			ind := &population[i]
			ind.Correlation = finite(report.OverallCorrelation)
			ind.Consistency = finite(report.ConsistencyScore)
			ind.Simplicity = Simplicity(ind.Definition)
			ind.Fitness = Fitness(ind.Correlation, ind.Consistency, ind.Simplicity)
			ind.BestField = report.BestField
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range scored {
		scored[i] = true
	}
	return nil
}

// breed builds the next generation from a population sorted by fitness.
// Elites carry over unchanged with their scores.
func (e *Evolver) breed(r *rand.Rand, cfg evolution.Config, index int, population []evolution.Individual) ([]evolution.Individual, []bool) {
	next := make([]evolution.Individual, 0, cfg.PopulationSize)
	scored := make([]bool, 0, cfg.PopulationSize)
	for i := 0; i < cfg.EliteSize && i < len(population); i++ {
		elite := population[i]
		elite.Elite = true
		next = append(next, elite)
		scored = append(scored, true)
	}
	for len(next) < cfg.PopulationSize {
		a := tournament(r, population, cfg.TournamentSize)
		b := tournament(r, population, cfg.TournamentSize)
		child := crossover(r, a.Definition, b.Definition)
		child = mutate(r, child, cfg.MutationRate, cfg.MutationSigma)
		next = append(next, newIndividual(index, len(next), child))
		scored = append(scored, false)
	}
	return next, scored
}

func (e *Evolver) finish(history *evolution.History, reason evolution.StopReason) (*evolution.History, error) {
	history.StopReason = reason
	history.Converged = reason == evolution.StopConverged
	fp, err := core.Fingerprint(struct {
		Generations []evolution.Generation `json:"generations"`
		Best        evolution.Individual   `json:"best"`
		StopReason  evolution.StopReason   `json:"stop_reason"`
	}{history.Generations, history.Best, history.StopReason})
	if err != nil {
		return nil, err
	}
	history.Fingerprint = fp

	metrics.ObserveEvolution(history.Config.FormulaType.String(), string(reason))
	e.logger.Info("run %s stopped: %s after %d generations, best=%.4f",
		history.ID, reason, len(history.Generations), history.Best.Fitness)
	return history, nil
}

func newIndividual(generation, index int, def domformula.Definition) evolution.Individual {
	id := fmt.Sprintf("g%03d-i%03d", generation, index)
	def.ID = fmt.Sprintf("%s@%s", def.Type, id)
	def.Version = 1
	return evolution.Individual{ID: id, Definition: def}
}

// Reproduce reruns the config of h and checks the fingerprint matches.
func (e *Evolver) Reproduce(ctx context.Context, h *evolution.History) error {
	again, err := e.Evolve(ctx, h.Config)
	if err != nil {
		return err
	}
	if again.StopReason == evolution.StopCancelled {
		return ctx.Err()
	}
	if !again.Fingerprint.Equals(h.Fingerprint) {
		return fmt.Errorf("%w: fingerprint %s != %s", core.ErrNonDeterministic, again.Fingerprint, h.Fingerprint)
	}
	return nil
}
