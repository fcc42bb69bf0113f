package ports

import (
	"context"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	"gonomen/domain/formula"
)

// HistorySummary is a listing entry for a stored evolution history.
type HistorySummary struct {
	ID          core.HistoryID       `json:"id" db:"id"`
	FormulaType string               `json:"formula_type" db:"formula_type"`
	Seed        int64                `json:"seed" db:"seed"`
	BestFitness float64              `json:"best_fitness" db:"best_fitness"`
	StopReason  evolution.StopReason `json:"stop_reason" db:"stop_reason"`
	Generations int                  `json:"generations" db:"generations"`
}

// HistoryRepository persists write-once evolution histories.
type HistoryRepository interface {
	// Save stores a history. Saving an existing ID is a no-op since
	// histories with equal IDs are identical.
	Save(ctx context.Context, h *evolution.History) error
	// Get returns core.ErrHistoryNotFound when the ID is unknown.
	Get(ctx context.Context, id core.HistoryID) (*evolution.History, error)
	List(ctx context.Context, t formula.Type, limit int) ([]HistorySummary, error)
}
