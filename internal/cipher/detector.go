// Package cipher profiles the name encoding transform against the
// properties of hash functions and ciphers. The resulting bands are
// descriptive analogies only.
package cipher

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"

	domcipher "gonomen/domain/cipher"
	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/features"
	domformula "gonomen/domain/formula"
	"gonomen/internal"
	"gonomen/internal/formula"
	"gonomen/internal/metrics"
	"gonomen/ports"
)

// MinNames is the smallest usable corpus: two references and two probes.
const MinNames = 4

// Config holds the analysis thresholds.
type Config struct {
	CollisionEpsilon       float64 `json:"collision_epsilon" yaml:"collision_epsilon" validate:"gt=0,lt=1"`
	CollisionThreshold     float64 `json:"collision_threshold" yaml:"collision_threshold" validate:"gt=0,lt=1"`
	AvalancheThreshold     float64 `json:"avalanche_threshold" yaml:"avalanche_threshold" validate:"gt=0,lt=1"`
	StrongAvalanche        float64 `json:"strong_avalanche" yaml:"strong_avalanche" validate:"gt=0,lte=1"`
	KeySpaceBins           int     `json:"key_space_bins" yaml:"key_space_bins" validate:"gte=2,lte=16"`
	ReversibilityTolerance float64 `json:"reversibility_tolerance" yaml:"reversibility_tolerance" validate:"gt=0,lt=1"`
	Workers                int     `json:"workers" yaml:"workers" validate:"gte=0"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		CollisionEpsilon:       0.01,
		CollisionThreshold:     0.05,
		AvalancheThreshold:     0.05,
		StrongAvalanche:        0.5,
		KeySpaceBins:           4,
		ReversibilityTolerance: 0.05,
	}
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.NewConfigError("cipher", err.Error())
	}
	return nil
}

// Detector is stateless after construction and safe for concurrent use.
type Detector struct {
	engine    *formula.Engine
	extractor ports.FeatureExtractor
	config    Config
	logger    *internal.Logger
}

// Option customizes a Detector.
type Option func(*Detector)

// WithConfig overrides the default thresholds.
func WithConfig(cfg Config) Option {
	return func(d *Detector) { d.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a detector over an engine and feature extractor.
func NewDetector(engine *formula.Engine, extractor ports.FeatureExtractor, opts ...Option) (*Detector, error) {
	if engine == nil || extractor == nil {
		return nil, core.NewConfigError("cipher", "engine and extractor are required")
	}
	d := &Detector{engine: engine, extractor: extractor, config: DefaultConfig(), logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.config.Validate(); err != nil {
		return nil, err
	}
	d.logger = d.logger.With("Cipher")
	return d, nil
}

// sample is a name with its features and encoding.
type sample struct {
	name     string
	features features.Vector
	encoding encoding.VisualEncoding
}

// Analyze profiles the default definition of t over names. Names that
// yield no features are listed in Skipped.
func (d *Detector) Analyze(ctx context.Context, names []string, t domformula.Type) (*domcipher.Profile, error) {
	def, err := d.engine.Definition(t)
	if err != nil {
		return nil, err
	}
	return d.AnalyzeDefinition(ctx, names, def)
}

// AnalyzeDefinition profiles an explicit definition over names.
func (d *Detector) AnalyzeDefinition(ctx context.Context, names []string, def domformula.Definition) (*domcipher.Profile, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	profile := &domcipher.Profile{
		FormulaType: def.Type,
		FormulaID:   def.ID,
		Disclaimer:  domcipher.Disclaimer,
	}
	samples := make([]sample, 0, len(names))
	for _, name := range names {
		s, err := d.encode(name, def)
		if err != nil {
			profile.Skipped = append(profile.Skipped, name)
			continue
		}
		samples = append(samples, s)
	}
	profile.Names = len(samples)
	if len(samples) < MinNames {
		return nil, fmt.Errorf("%w: need at least %d usable names, got %d", core.ErrInputValidation, MinNames, len(samples))
	}

	var err error
	profile.Reversibility, err = d.reversibility(samples)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile.Collision, err = d.collision(ctx, samples)
	if err != nil {
		return nil, err
	}
	profile.Avalanche = d.avalanche(samples, def)
	profile.KeySpace = d.keySpace(samples)
	profile.Band = d.classify(profile)

	metrics.ObserveCipher(def.Type.String(), string(profile.Band))
	d.logger.Info("%s over %d names: band=%s reversibility=%.3f collision_rate=%.4f avalanche=%.3f uniformity=%.3f",
		def.ID, profile.Names, profile.Band, profile.Reversibility.Score,
		profile.Collision.CollisionRate, profile.Avalanche.Score, profile.KeySpace.Uniformity)
	return profile, nil
}

func (d *Detector) encode(name string, def domformula.Definition) (sample, error) {
	fv, err := d.extractor.Extract(name)
	if err != nil {
		return sample{}, err
	}
	enc, err := d.engine.TransformWith(name, fv, def)
	if err != nil {
		return sample{}, err
	}
	return sample{name: name, features: fv, encoding: enc}, nil
}

// Band rules, checked in order.
const (
	hashReversibilityMax  = 0.3
	hashUniformityMin     = 0.8
	blockReversibilityMin = 0.7
	blockAvalancheMin     = 0.3
)

// classify maps the four measurements onto a reference band. A collision
// prone transform is always a simple encoding.
func (d *Detector) classify(p *domcipher.Profile) domcipher.Band {
	switch {
	case p.Collision.Resistant && p.Avalanche.Strong &&
		p.Reversibility.Score < hashReversibilityMax && p.KeySpace.Uniformity >= hashUniformityMin:
		return domcipher.BandCryptographicHash
	case p.Collision.Resistant && p.Reversibility.Score >= blockReversibilityMin && p.Avalanche.Score >= blockAvalancheMin:
		return domcipher.BandBlockCipher
	case p.Collision.Resistant && p.Reversibility.Score < blockReversibilityMin:
		return domcipher.BandWeakHash
	default:
		return domcipher.BandSimpleEncoding
	}
}

func (d *Detector) workers() int {
	if d.config.Workers > 0 {
		return d.config.Workers
	}
	return runtime.GOMAXPROCS(0)
}
