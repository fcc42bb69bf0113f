package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	adfeatures "gonomen/adapters/features"
	"gonomen/domain/core"
	"gonomen/domain/evolution"
	"gonomen/domain/formula"
	"gonomen/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	dataset   *SyntheticDataset
	extractor *adfeatures.LinguisticExtractor
	histories *InMemoryHistoryRepository
}

// NewTestKit creates a new test kit instance with the default synthetic domains
func NewTestKit() *TestKit {
	return NewTestKitWithDomains(42, DefaultDomains()...)
}

// NewTestKitWithDomains creates a test kit over custom synthetic domains
func NewTestKitWithDomains(seed int64, domains ...DomainSpec) *TestKit {
	extractor := adfeatures.NewLinguisticExtractor()
	return &TestKit{
		dataset:   NewSyntheticDataset(seed, extractor, domains...),
		extractor: extractor,
		histories: NewInMemoryHistoryRepository(),
	}
}

// DomainDataset returns the synthetic dataset adapter
func (t *TestKit) DomainDataset() ports.DomainDataset {
	return t.dataset
}

// FeatureExtractor returns the reference feature extractor
func (t *TestKit) FeatureExtractor() ports.FeatureExtractor {
	return t.extractor
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// HistoryRepository returns the shared in-memory history store
func (t *TestKit) HistoryRepository() ports.HistoryRepository {
	return t.histories
}

// Names returns count deterministic synthetic names.
func (t *TestKit) Names(count int, seed int64) []string {
	rng := rand.New(rand.NewSource(seed))
	out := make([]string, count)
	for i := range out {
		out[i] = GenerateName(rng)
	}
	return out
}

// RNGAdapter implements the RNGPort interface for testing
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG stream for a run and sub-stream
func (r *RNGAdapter) Stream(ctx context.Context, runID, streamName, key string, baseSeed int64) (*rand.Rand, error) {
	// identical run/stream/key combinations always yield identical sequences
	seed := baseSeed
	if runID != "" {
		seed = int64(hashString(runID)) + seed
	}
	if streamName != "" {
		seed = int64(hashString(streamName)) + seed
	}
	if key != "" {
		seed = int64(hashString(key)) + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

// InMemoryHistoryRepository implements HistoryRepository with in-memory storage
type InMemoryHistoryRepository struct {
	histories map[core.HistoryID]evolution.History
	order     []core.HistoryID
	mu        sync.RWMutex
}

func NewInMemoryHistoryRepository() *InMemoryHistoryRepository {
	return &InMemoryHistoryRepository{
		histories: make(map[core.HistoryID]evolution.History),
	}
}

func (s *InMemoryHistoryRepository) Save(ctx context.Context, h *evolution.History) error {
	if h == nil || h.ID == "" {
		return fmt.Errorf("%w: history without ID", core.ErrInputValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.histories[h.ID]; exists {
		return nil
	}
	s.histories[h.ID] = *h
	s.order = append(s.order, h.ID)
	return nil
}

func (s *InMemoryHistoryRepository) Get(ctx context.Context, id core.HistoryID) (*evolution.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.histories[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrHistoryNotFound, id)
	}
	return &h, nil
}

func (s *InMemoryHistoryRepository) List(ctx context.Context, t formula.Type, limit int) ([]ports.HistorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ports.HistorySummary
	for _, id := range s.order {
		h := s.histories[id]
		if h.Config.FormulaType != t {
			continue
		}
		results = append(results, ports.HistorySummary{
			ID:          h.ID,
			FormulaType: h.Config.FormulaType.String(),
			Seed:        h.Config.Seed,
			BestFitness: h.Best.Fitness,
			StopReason:  h.StopReason,
			Generations: len(h.Generations),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].BestFitness > results[j].BestFitness })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
