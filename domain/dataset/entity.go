// Package dataset defines the outcome records supplied by domain adapters.
package dataset

import (
	"fmt"
	"math"

	"gonomen/domain/core"
)

// Entity is one named record of a domain with its pre-normalized outcome.
type Entity struct {
	Name    string        `json:"name" db:"name"`
	Outcome float64       `json:"outcome" db:"outcome"`
	Domain  core.DomainID `json:"domain_id" db:"domain_id"`
	Success *bool         `json:"success,omitempty" db:"success"`
}

// HasLabel reports whether the entity carries a binary success label.
func (e Entity) HasLabel() bool {
	return e.Success != nil
}

// Validate rejects entities without a name or with a non-finite outcome
// outside [0,1].
func (e Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: entity name is empty", core.ErrInputValidation)
	}
	if math.IsNaN(e.Outcome) || e.Outcome < 0 || e.Outcome > 1 {
		return fmt.Errorf("%w: entity %q outcome %g is not normalized", core.ErrInputValidation, e.Name, e.Outcome)
	}
	return nil
}

// Label is a convenience constructor for success labels.
func Label(v bool) *bool {
	return &v
}

// NormalizeOutcomes min-max scales raw outcomes onto [0,1] in place.
// A constant column maps to 0.5.
func NormalizeOutcomes(entities []Entity) {
	if len(entities) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range entities {
		lo = math.Min(lo, e.Outcome)
		hi = math.Max(hi, e.Outcome)
	}
	span := hi - lo
	for i := range entities {
		if span == 0 {
			entities[i].Outcome = 0.5
			continue
		}
		entities[i].Outcome = (entities[i].Outcome - lo) / span
	}
}
