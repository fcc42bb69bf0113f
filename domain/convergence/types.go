// Package convergence defines the numeric patterns mined from evolved
// parameter populations.
package convergence

import (
	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/formula"
)

// InvariantKind distinguishes parameter ratios from single-parameter constants.
type InvariantKind string

const (
	KindRatio    InvariantKind = "ratio"
	KindConstant InvariantKind = "constant"
)

// Constant is a named reference value invariants are matched against.
type Constant struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Invariant is a ratio or constant recurring above the declared rate.
type Invariant struct {
	FormulaType formula.Type    `json:"formula_type"`
	Kind        InvariantKind   `json:"kind"`
	Params      []string        `json:"params"`
	Constant    Constant        `json:"constant"`
	MeanValue   float64         `json:"mean_value"`
	Occurrence  float64         `json:"occurrence_rate"`
	Support     int             `json:"support"`
	Total       int             `json:"total"`
	Runs        []int64         `json:"runs,omitempty"`
	Domains     []core.DomainID `json:"domains,omitempty"`
}

// Key identifies an invariant independent of its statistics.
func (i Invariant) Key() string {
	key := i.FormulaType.String() + ":" + string(i.Kind) + ":" + i.Constant.Name
	for _, p := range i.Params {
		key += ":" + p
	}
	return key
}

// ParameterStats summarizes one parameter over a final population.
type ParameterStats struct {
	Name     string  `json:"name"`
	Best     float64 `json:"best"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Signature is the convergence summary of one or more evolution runs.
type Signature struct {
	FormulaType formula.Type       `json:"formula_type"`
	Histories   []core.HistoryID   `json:"histories"`
	BestFitness float64            `json:"best_fitness"`
	BestParams  map[string]float64 `json:"best_params"`
	Parameters  []ParameterStats   `json:"parameters"`
	Invariants  []Invariant        `json:"invariants"`
}

// PropertyPattern is a validated encoding field and the domains it held in.
type PropertyPattern struct {
	Field   encoding.Field  `json:"field"`
	Domains []core.DomainID `json:"domains"`
}

// PatternReport separates patterns that generalize from domain-specific ones.
type PatternReport struct {
	UniversalInvariants      []Invariant       `json:"universal_invariants"`
	DomainSpecificInvariants []Invariant       `json:"domain_specific_invariants"`
	UniversalProperties      []PropertyPattern `json:"universal_properties"`
	DomainSpecificProperties []PropertyPattern `json:"domain_specific_properties"`
}
