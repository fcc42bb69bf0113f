package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"gonomen/domain/core"
	"gonomen/domain/dataset"
	"gonomen/domain/features"
	"gonomen/ports"
)

// DomainSpec configures one synthetic domain. Outcomes follow the normalized
// Signal feature with the given Strength plus Gaussian Noise.
type DomainSpec struct {
	ID       core.DomainID
	Size     int
	Signal   features.Key
	Strength float64
	Noise    float64
	Labeled  bool
}

// DefaultDomains returns five domains with planted signals of varying strength.
func DefaultDomains() []DomainSpec {
	return []DomainSpec{
		{ID: "crypto", Size: 400, Signal: features.Harshness, Strength: 0.8, Noise: 0.15, Labeled: true},
		{ID: "elections", Size: 600, Signal: features.SyllableCount, Strength: -0.6, Noise: 0.2, Labeled: true},
		{ID: "hurricanes", Size: 300, Signal: features.Harshness, Strength: 0.6, Noise: 0.2},
		{ID: "surnames", Size: 800, Signal: features.LetterEntropy, Strength: 0, Noise: 0.25},
		{ID: "bands", Size: 500, Signal: features.VowelRatio, Strength: 0.5, Noise: 0.2, Labeled: true},
	}
}

var syllablePool = []string{
	"ba", "ko", "ri", "tex", "zan", "lu", "mor", "vi", "ca", "thra", "ster", "ion",
	"el", "dra", "gon", "nu", "bit", "coin", "eth", "ra", "sol", "ka", "mi", "po",
	"qua", "zed", "fen", "lo", "ar", "is", "tor", "ban", "dex", "ly", "gra", "pix",
}

// GenerateName builds a capitalized name of one to four pool syllables.
func GenerateName(rng *rand.Rand) string {
	n := 1 + rng.Intn(4)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(syllablePool[rng.Intn(len(syllablePool))])
	}
	s := b.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// SyntheticDataset implements ports.DomainDataset over generated domains.
// Each domain is generated once from its own seeded stream, so a Load with
// any limit returns a prefix of the same sequence.
type SyntheticDataset struct {
	seed      int64
	extractor ports.FeatureExtractor
	rng       ports.RNGPort
	specs     map[core.DomainID]DomainSpec

	mu    sync.Mutex
	cache map[core.DomainID][]dataset.Entity
}

// NewSyntheticDataset creates a dataset over the given domain specs.
func NewSyntheticDataset(seed int64, extractor ports.FeatureExtractor, domains ...DomainSpec) *SyntheticDataset {
	specs := make(map[core.DomainID]DomainSpec, len(domains))
	for _, d := range domains {
		specs[d.ID] = d
	}
	return &SyntheticDataset{
		seed:      seed,
		extractor: extractor,
		rng:       &RNGAdapter{},
		specs:     specs,
		cache:     make(map[core.DomainID][]dataset.Entity),
	}
}

// Domains lists the configured domains, sorted.
func (s *SyntheticDataset) Domains(ctx context.Context) ([]core.DomainID, error) {
	out := make([]core.DomainID, 0, len(s.specs))
	for id := range s.specs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Load returns up to limit entities of a domain.
func (s *SyntheticDataset) Load(ctx context.Context, domain core.DomainID, limit int) ([]dataset.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, ok := s.specs[domain]
	if !ok {
		return nil, fmt.Errorf("%w: unknown domain %s", core.ErrDatasetUnavailable, domain)
	}
	entities, err := s.generate(ctx, spec)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	out := make([]dataset.Entity, len(entities))
	copy(out, entities)
	return out, nil
}

func (s *SyntheticDataset) generate(ctx context.Context, spec DomainSpec) ([]dataset.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[spec.ID]; ok {
		return cached, nil
	}

	rng, err := s.rng.Stream(ctx, "synthetic", "domain", string(spec.ID), s.seed)
	if err != nil {
		return nil, err
	}
	entities := make([]dataset.Entity, 0, spec.Size)
	for len(entities) < spec.Size {
		name := GenerateName(rng)
		fv, err := s.extractor.Extract(name)
		if err != nil {
			continue
		}
		noise := rng.NormFloat64() * spec.Noise
		entities = append(entities, dataset.Entity{
			Name:    name,
			Outcome: 0.5 + spec.Strength*(fv.Normalized(spec.Signal)-0.5) + noise,
			Domain:  spec.ID,
		})
	}
	dataset.NormalizeOutcomes(entities)
	if spec.Labeled {
		for i := range entities {
			entities[i].Success = dataset.Label(entities[i].Outcome >= 0.5)
		}
	}
	s.cache[spec.ID] = entities
	return entities, nil
}
