package ports

import (
	"context"

	"gonomen/domain/core"
	"gonomen/domain/dataset"
)

// DomainDataset supplies outcome records for independent domains.
// Outcomes are pre-normalized to [0,1] per domain.
type DomainDataset interface {
	// Load returns at most limit entities of a domain. Fewer may be returned
	// when the domain is smaller. Failures wrap core.ErrDatasetUnavailable.
	Load(ctx context.Context, domain core.DomainID, limit int) ([]dataset.Entity, error)

	// Domains lists the domains the adapter can load, sorted.
	Domains(ctx context.Context) ([]core.DomainID, error)
}
