package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gonomen/domain/core"
	"gonomen/domain/dataset"
)

// EntityDataset serves domains from the domain_entities table
type EntityDataset struct {
	db *sqlx.DB
}

// NewEntityDataset creates a PostgreSQL domain dataset
func NewEntityDataset(db *sqlx.DB) *EntityDataset {
	return &EntityDataset{db: db}
}

// Domains lists the distinct domain ids, sorted
func (d *EntityDataset) Domains(ctx context.Context) ([]core.DomainID, error) {
	var domains []core.DomainID
	err := d.db.SelectContext(ctx, &domains, `
		SELECT DISTINCT domain_id FROM domain_entities ORDER BY domain_id
	`)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	return domains, nil
}

// Load returns at most limit entities of a domain in insertion order
func (d *EntityDataset) Load(ctx context.Context, domain core.DomainID, limit int) ([]dataset.Entity, error) {
	var entities []dataset.Entity
	err := d.db.SelectContext(ctx, &entities, `
		SELECT name, outcome, domain_id, success
		FROM domain_entities
		WHERE domain_id = $1
		ORDER BY position
		LIMIT $2
	`, domain, limit)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	return entities, nil
}

// Import replaces a domain's entities. Outcomes must already be normalized.
func (d *EntityDataset) Import(ctx context.Context, domain core.DomainID, entities []dataset.Entity) error {
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM domain_entities WHERE domain_id = $1`, domain); err != nil {
		return err
	}
	for i, e := range entities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO domain_entities (domain_id, position, name, outcome, success)
			VALUES ($1, $2, $3, $4, $5)
		`, domain, i, e.Name, e.Outcome, e.Success)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// unavailable keeps context errors intact so callers can tell a
// cancellation from a broken source.
func unavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", core.ErrDatasetUnavailable, err)
}
