package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream scoped to a run and a sub-stream key.
	// Identical arguments always yield identical sequences.
	Stream(ctx context.Context, runID, streamName, key string, baseSeed int64) (*rand.Rand, error)
}
