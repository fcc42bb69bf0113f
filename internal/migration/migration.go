package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gonomen/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Statements lists the schema statements in execution order. Every
// statement is idempotent.
func Statements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS domain_entities (
			domain_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			outcome DOUBLE PRECISION NOT NULL CHECK (outcome >= 0 AND outcome <= 1),
			success BOOLEAN,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (domain_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS evolution_histories (
			id TEXT PRIMARY KEY,
			formula_type TEXT NOT NULL,
			seed BIGINT NOT NULL,
			best_fitness DOUBLE PRECISION NOT NULL,
			stop_reason TEXT NOT NULL,
			generations INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			history JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_entities_domain ON domain_entities(domain_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evolution_histories_type_fitness ON evolution_histories(formula_type, best_fitness DESC)`,
	}
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin migration", err)
	}
	defer tx.Rollback()

	for _, stmt := range Statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.DatabaseError("failed to apply schema", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit migration", err)
	}
	return nil
}
