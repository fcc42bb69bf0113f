// Package evolution defines the configuration and history of a genetic
// search over formula parameters.
package evolution

import (
	"fmt"

	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/formula"
)

// StopReason records which condition ended a run.
type StopReason string

const (
	StopConverged       StopReason = "converged"
	StopBudgetExhausted StopReason = "generation_budget_exhausted"
	StopCancelled       StopReason = "cancelled"
)

// Fitness weights.
const (
	CorrelationWeight = 0.70
	ConsistencyWeight = 0.20
	SimplicityWeight  = 0.10
)

// Config is the full input of one evolution run. Workers only bounds
// parallelism and is excluded from the run identity.
type Config struct {
	FormulaType    formula.Type    `json:"formula_type"`
	Domains        []core.DomainID `json:"domains" validate:"required,min=1,dive,required"`
	PopulationSize int             `json:"population_size" validate:"gte=2,lte=10000"`
	Generations    int             `json:"generations" validate:"gte=1,lte=100000"`
	MutationRate   float64         `json:"mutation_rate" validate:"gte=0,lte=1"`
	EliteSize      int             `json:"elite_size" validate:"gte=1,ltfield=PopulationSize"`
	LimitPerDomain int             `json:"limit_per_domain" validate:"gte=1"`
	Seed           int64           `json:"seed"`
	Epsilon        float64         `json:"epsilon" validate:"gte=0"`
	Patience       int             `json:"patience" validate:"gte=1"`
	TournamentSize int             `json:"tournament_size" validate:"gte=1,ltefield=PopulationSize"`
	MutationSigma  float64         `json:"mutation_sigma" validate:"gt=0,lte=1"`
	Workers        int             `json:"-" validate:"gte=0"`
}

// DefaultConfig returns a configuration with the standard search settings.
func DefaultConfig(t formula.Type, domains []core.DomainID) Config {
	return Config{
		FormulaType:    t,
		Domains:        domains,
		PopulationSize: 20,
		Generations:    30,
		MutationRate:   0.2,
		EliteSize:      2,
		LimitPerDomain: 500,
		Seed:           42,
		Epsilon:        1e-4,
		Patience:       5,
		TournamentSize: 3,
		MutationSigma:  0.1,
	}
}

// Individual is one scored member of a generation.
type Individual struct {
	ID          string             `json:"id"`
	Definition  formula.Definition `json:"definition"`
	Fitness     float64            `json:"fitness"`
	Correlation float64            `json:"correlation"`
	Consistency float64            `json:"consistency"`
	Simplicity  float64            `json:"simplicity"`
	BestField   encoding.Field     `json:"best_field,omitempty"`
	Elite       bool               `json:"elite"`
}

// Generation is a population sorted by descending fitness.
type Generation struct {
	Index       int          `json:"index"`
	Population  []Individual `json:"population"`
	Best        Individual   `json:"best"`
	MeanFitness float64      `json:"mean_fitness"`
	Improvement float64      `json:"improvement"`
	Stalled     int          `json:"stalled"`
	Converged   bool         `json:"converged"`
}

// History is the write-once log of a run.
type History struct {
	ID          core.HistoryID `json:"id"`
	Config      Config         `json:"config"`
	Generations []Generation   `json:"generations"`
	Best        Individual     `json:"best"`
	StopReason  StopReason     `json:"stop_reason"`
	Converged   bool           `json:"converged"`
	Fingerprint core.Hash      `json:"fingerprint"`
}

// Final returns the last recorded generation.
func (h History) Final() (Generation, bool) {
	if len(h.Generations) == 0 {
		return Generation{}, false
	}
	return h.Generations[len(h.Generations)-1], true
}

// BestFitness returns best-of-generation fitness per generation.
func (h History) BestFitness() []float64 {
	out := make([]float64, len(h.Generations))
	for i, g := range h.Generations {
		out[i] = g.Best.Fitness
	}
	return out
}

// Frozen returns the best definition versioned as an evolved release.
func (h History) Frozen() formula.Definition {
	def := h.Best.Definition.Clone()
	def.Version++
	short := h.ID.String()
	if len(short) > 8 {
		short = short[:8]
	}
	def.ID = fmt.Sprintf("%s@v%d-%s", def.Type, def.Version, short)
	return def
}

// Progress is a polling snapshot of a running evolution.
type Progress struct {
	Running     bool    `json:"running"`
	Generation  int     `json:"generation"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
}
