package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	"gonomen/domain/formula"
	"gonomen/ports"
)

// HistoryJSON stores an evolution history in a JSONB column
type HistoryJSON evolution.History

// Value implements driver.Valuer interface
func (h HistoryJSON) Value() (driver.Value, error) {
	return json.Marshal(evolution.History(h))
}

// Scan implements sql.Scanner interface
func (h *HistoryJSON) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	case nil:
		return fmt.Errorf("history column is NULL")
	default:
		return fmt.Errorf("unsupported history column type %T", value)
	}
	var out evolution.History
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	*h = HistoryJSON(out)
	return nil
}

// HistoryRepositoryImpl implements ports.HistoryRepository for PostgreSQL
type HistoryRepositoryImpl struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new PostgreSQL history repository
func NewHistoryRepository(db *sqlx.DB) ports.HistoryRepository {
	return &HistoryRepositoryImpl{db: db}
}

// Summarize extracts the listing columns of a history
func Summarize(h *evolution.History) ports.HistorySummary {
	return ports.HistorySummary{
		ID:          h.ID,
		FormulaType: h.Config.FormulaType.String(),
		Seed:        h.Config.Seed,
		BestFitness: h.Best.Fitness,
		StopReason:  h.StopReason,
		Generations: len(h.Generations),
	}
}

// Save stores a history; an existing ID is left untouched
func (r *HistoryRepositoryImpl) Save(ctx context.Context, h *evolution.History) error {
	if h == nil || h.ID == "" {
		return fmt.Errorf("%w: history without ID", core.ErrInputValidation)
	}
	s := Summarize(h)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evolution_histories (id, formula_type, seed, best_fitness, stop_reason, generations, fingerprint, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, s.ID, s.FormulaType, s.Seed, s.BestFitness, s.StopReason, s.Generations, h.Fingerprint, HistoryJSON(*h))
	return err
}

// Get retrieves a history by ID
func (r *HistoryRepositoryImpl) Get(ctx context.Context, id core.HistoryID) (*evolution.History, error) {
	var h HistoryJSON
	err := r.db.GetContext(ctx, &h, `SELECT history FROM evolution_histories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrHistoryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	out := evolution.History(h)
	return &out, nil
}

// List returns summaries of one formula type, best first
func (r *HistoryRepositoryImpl) List(ctx context.Context, t formula.Type, limit int) ([]ports.HistorySummary, error) {
	query := `
		SELECT id, formula_type, seed, best_fitness, stop_reason, generations
		FROM evolution_histories
		WHERE formula_type = $1
		ORDER BY best_fitness DESC, created_at
	`
	args := []interface{}{t.String()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var out []ports.HistorySummary
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}
