// Package validation scores formula definitions by how well their encodings
// correlate with real-world outcomes across independent domains.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"gonomen/adapters/stats/senses"
	"gonomen/domain/core"
	"gonomen/domain/dataset"
	"gonomen/domain/encoding"
	"gonomen/domain/features"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	"gonomen/internal"
	"gonomen/internal/formula"
	"gonomen/internal/metrics"
	"gonomen/ports"
)

// Config controls sample-size gating and the universality rule.
type Config struct {
	MinSampleSize     int     `json:"min_sample_size" yaml:"min_sample_size" validate:"gte=3"`
	Threshold         float64 `json:"threshold" yaml:"threshold" validate:"gt=0,lt=1"`
	UniversalFraction float64 `json:"universal_fraction" yaml:"universal_fraction" validate:"gt=0,lte=1"`
	Workers           int     `json:"workers" yaml:"workers" validate:"gte=0"` // 0 means one per domain
}

// DefaultConfig returns the reference validation settings.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:     30,
		Threshold:         0.15,
		UniversalFraction: 0.6,
	}
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.NewConfigError("validator", err.Error())
	}
	return nil
}

// Sample is one entity of a domain with its extracted features.
type Sample struct {
	Entity   dataset.Entity
	Features features.Vector
}

// DomainSample is the prepared input of one domain.
type DomainSample struct {
	Domain      core.DomainID
	Requested   int
	Loaded      int
	Unavailable bool
	Samples     []Sample
	Warnings    []stats.Warning
	Skipped     []stats.SkippedItem
}

// Corpus is the loaded and feature-extracted input of a validation run.
// Feature extraction does not depend on the formula, so one corpus serves
// every definition scored during an evolution run.
type Corpus struct {
	Domains []DomainSample
	Limit   int
}

// DomainIDs returns the domains of the corpus in request order.
func (c *Corpus) DomainIDs() []core.DomainID {
	ids := make([]core.DomainID, len(c.Domains))
	for i, d := range c.Domains {
		ids[i] = d.Domain
	}
	return ids
}

// Validator scores formulas against a dataset. It holds no mutable state
// after construction and is safe for concurrent use.
type Validator struct {
	engine    *formula.Engine
	dataset   ports.DomainDataset
	extractor ports.FeatureExtractor
	senses    *senses.SenseEngine
	threshold *senses.ThresholdSense
	config    Config
	logger    *internal.Logger
}

// Option customizes a Validator.
type Option func(*Validator)

// WithConfig overrides the default settings.
func WithConfig(cfg Config) Option {
	return func(v *Validator) { v.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// NewValidator creates a validator over a dataset and feature extractor.
func NewValidator(engine *formula.Engine, ds ports.DomainDataset, extractor ports.FeatureExtractor, opts ...Option) (*Validator, error) {
	if engine == nil || ds == nil || extractor == nil {
		return nil, core.NewConfigError("validator", "engine, dataset and extractor are required")
	}
	v := &Validator{
		engine:    engine,
		dataset:   ds,
		extractor: extractor,
		senses:    senses.NewSenseEngine(),
		threshold: senses.NewThresholdSense(),
		config:    DefaultConfig(),
		logger:    internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.config.Validate(); err != nil {
		return nil, err
	}
	v.logger = v.logger.With("Validator")
	return v, nil
}

// Config returns the active settings.
func (v *Validator) Config() Config {
	return v.config
}

// Engine returns the transform engine used for encoding.
func (v *Validator) Engine() *formula.Engine {
	return v.engine
}

// Validate validates the engine's default definition of t.
func (v *Validator) Validate(ctx context.Context, t domformula.Type, domains []core.DomainID, limit int) (*stats.CrossDomainReport, error) {
	def, err := v.engine.Definition(t)
	if err != nil {
		return nil, err
	}
	corpus, err := v.Prepare(ctx, domains, limit)
	if err != nil {
		return nil, err
	}
	return v.ValidateDefinition(ctx, corpus, def)
}

// Prepare loads every domain and extracts features. Per-domain load
// failures and per-entity problems become warnings; only invalid
// arguments and cancellation are returned as errors.
func (v *Validator) Prepare(ctx context.Context, domains []core.DomainID, limit int) (*Corpus, error) {
	if limit < 1 {
		return nil, core.NewConfigError("limit_per_domain", fmt.Sprintf("must be >= 1, got %d", limit))
	}
	if len(domains) == 0 {
		return nil, core.NewConfigError("domains", "at least one domain is required")
	}
	seen := make(map[core.DomainID]bool, len(domains))
	for _, d := range domains {
		if d == "" {
			return nil, core.NewConfigError("domains", "empty domain id")
		}
		if seen[d] {
			return nil, core.NewConfigError("domains", fmt.Sprintf("duplicate domain %q", d))
		}
		seen[d] = true
	}

	corpus := &Corpus{Domains: make([]DomainSample, len(domains)), Limit: limit}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers(len(domains)))
	for i, d := range domains {
		g.Go(func() error {
			ds, err := v.loadDomain(gctx, d, limit)
			if err != nil {
				return err
			}
			corpus.Domains[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return corpus, nil
}

func (v *Validator) loadDomain(ctx context.Context, domain core.DomainID, limit int) (DomainSample, error) {
	ds := DomainSample{Domain: domain, Requested: limit}

	entities, err := v.dataset.Load(ctx, domain, limit)
	if err != nil {
		if ctx.Err() != nil {
			return ds, ctx.Err()
		}
		v.logger.Warn("domain %s unavailable: %v", domain, err)
		ds.Unavailable = true
		ds.Warnings = append(ds.Warnings, stats.Warning{Domain: domain, Kind: stats.WarningLoadFailed, Message: err.Error()})
		ds.Skipped = append(ds.Skipped, stats.SkippedItem{Domain: domain, Reason: stats.WarningLoadFailed})
		return ds, nil
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}
	ds.Loaded = len(entities)
	if ds.Loaded < limit {
		ds.Warnings = append(ds.Warnings, stats.Warning{
			Domain:  domain,
			Kind:    stats.WarningShortSample,
			Message: fmt.Sprintf("requested %d entities, %d available", limit, ds.Loaded),
		})
	}

	ds.Samples = make([]Sample, 0, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			ds.Warnings = append(ds.Warnings, stats.Warning{Domain: domain, Entity: e.Name, Kind: stats.WarningInvalidEntity, Message: err.Error()})
			ds.Skipped = append(ds.Skipped, stats.SkippedItem{Domain: domain, Entity: e.Name, Reason: stats.WarningInvalidEntity})
			continue
		}
		fv, err := v.extractor.Extract(e.Name)
		if err == nil {
			err = fv.Validate()
		}
		if err != nil {
			ds.Warnings = append(ds.Warnings, stats.Warning{Domain: domain, Entity: e.Name, Kind: stats.WarningInvalidFeatures, Message: err.Error()})
			ds.Skipped = append(ds.Skipped, stats.SkippedItem{Domain: domain, Entity: e.Name, Reason: stats.WarningInvalidFeatures})
			continue
		}
		ds.Samples = append(ds.Samples, Sample{Entity: e, Features: fv})
	}
	v.logger.Debug("domain %s: %d loaded, %d usable", domain, ds.Loaded, len(ds.Samples))
	return ds, nil
}

// ValidateDefinition scores one definition against a prepared corpus.
// An invalid definition is a contract violation and is returned as an error.
func (v *Validator) ValidateDefinition(ctx context.Context, corpus *Corpus, def domformula.Definition) (report *stats.CrossDomainReport, err error) {
	started := time.Now()
	defer func() { metrics.ObserveValidation(def.Type.String(), started, err) }()

	if corpus == nil {
		return nil, core.NewConfigError("corpus", "nil corpus")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	results := make([]stats.DomainValidation, len(corpus.Domains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers(len(corpus.Domains)))
	for i := range corpus.Domains {
		g.Go(func() error {
			dv, err := v.validateDomain(gctx, &corpus.Domains[i], def)
			if err != nil {
				return err
			}
			results[i] = dv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	id, err := reportID(def, corpus)
	if err != nil {
		return nil, err
	}
	report = &stats.CrossDomainReport{
		ID:                  id,
		Formula:             def.Clone(),
		LimitPerDomain:      corpus.Limit,
		Threshold:           v.config.Threshold,
		MinSampleSize:       v.config.MinSampleSize,
		Domains:             results,
		UniversalProperties: []encoding.Field{},
		Warnings:            []stats.Warning{},
		Skipped:             []stats.SkippedItem{},
	}
	for i, ds := range corpus.Domains {
		report.Warnings = append(report.Warnings, ds.Warnings...)
		report.Skipped = append(report.Skipped, ds.Skipped...)
		if results[i].Status == stats.DomainInsufficientData {
			report.Warnings = append(report.Warnings, stats.Warning{
				Domain:  ds.Domain,
				Kind:    stats.WarningInsufficientData,
				Message: core.NewInsufficientDataError(ds.Domain.String(), results[i].SampleSize, v.config.MinSampleSize).Error(),
			})
			report.Skipped = append(report.Skipped, stats.SkippedItem{Domain: ds.Domain, Reason: stats.WarningInsufficientData})
		}
	}
	v.aggregate(report)

	v.logger.Info("%s: overall=%.4f consistency=%.4f best=%s eligible=%d/%d",
		def.ID, report.OverallCorrelation, report.ConsistencyScore, report.BestField,
		len(report.EligibleDomains()), len(report.Domains))
	return report, nil
}

func (v *Validator) validateDomain(ctx context.Context, ds *DomainSample, def domformula.Definition) (stats.DomainValidation, error) {
	dv := stats.DomainValidation{
		Domain:     ds.Domain,
		Requested:  ds.Requested,
		Loaded:     ds.Loaded,
		SampleSize: len(ds.Samples),
	}
	if ds.Unavailable {
		dv.Status = stats.DomainUnavailable
		return dv, nil
	}
	if err := ctx.Err(); err != nil {
		return dv, err
	}

	fields := encoding.Fields()
	columns := make([][]float64, len(fields))
	for i := range columns {
		columns[i] = make([]float64, 0, len(ds.Samples))
	}
	outcomes := make([]float64, 0, len(ds.Samples))
	labeled := make([]int, 0, len(ds.Samples))
	for _, s := range ds.Samples {
		enc, err := v.engine.TransformWith(s.Entity.Name, s.Features, def)
		if err != nil {
			return dv, err
		}
		for i, f := range fields {
			columns[i] = append(columns[i], enc.Get(f))
		}
		if s.Entity.HasLabel() {
			labeled = append(labeled, len(outcomes))
		}
		outcomes = append(outcomes, s.Entity.Outcome)
	}
	dv.Labeled = len(labeled)

	if dv.SampleSize < v.config.MinSampleSize {
		dv.Status = stats.DomainInsufficientData
		return dv, nil
	}
	dv.Status = stats.DomainOK

	labels := make([]bool, len(labeled))
	for j, idx := range labeled {
		labels[j] = *ds.Samples[idx].Entity.Success
	}

	dv.Fields = make([]stats.FieldCorrelation, len(fields))
	for i, f := range fields {
		results := v.senses.AnalyzeAll(ctx, columns[i], outcomes, string(f))
		pearson, spearman := results[0], results[1]
		fc := stats.FieldCorrelation{
			Field:      f,
			Pearson:    pearson.EffectSize,
			PearsonP:   pearson.PValue,
			Spearman:   spearman.EffectSize,
			SpearmanP:  spearman.PValue,
			Degenerate: pearson.Degenerate,
		}
		if len(labeled) > 0 {
			x := make([]float64, len(labeled))
			for j, idx := range labeled {
				x[j] = columns[i][idx]
			}
			if fit, ok := v.threshold.Fit(x, labels); ok {
				fc.Classifier = &stats.Classifier{Threshold: fit.Threshold, Direction: fit.Direction, Accuracy: fit.Accuracy}
			}
		}
		dv.Fields[i] = fc
	}
	return dv, nil
}

// aggregate fills the cross-domain field summaries, best field, overall
// correlation, consistency and universal properties.
func (v *Validator) aggregate(report *stats.CrossDomainReport) {
	var eligible []stats.DomainValidation
	for _, d := range report.Domains {
		if d.Eligible() {
			eligible = append(eligible, d)
		}
	}

	report.Fields = make([]stats.FieldAggregate, 0, len(encoding.Fields()))
	for i, f := range encoding.Fields() {
		agg := stats.FieldAggregate{Field: f, EligibleDomains: len(eligible)}
		var totalN, accN, accSum float64
		for _, d := range eligible {
			fc := d.Fields[i]
			n := float64(d.SampleSize)
			totalN += n
			agg.WeightedMeanAbsR += n * math.Abs(fc.Pearson)
			if math.Abs(fc.Pearson) > v.config.Threshold {
				agg.DomainsAboveThreshold++
			}
			if fc.Classifier != nil && d.Labeled > 0 {
				accN += float64(d.Labeled)
				accSum += float64(d.Labeled) * fc.Classifier.Accuracy
			}
		}
		if totalN > 0 {
			agg.WeightedMeanAbsR /= totalN
			for _, d := range eligible {
				diff := math.Abs(d.Fields[i].Pearson) - agg.WeightedMeanAbsR
				agg.WeightedVariance += float64(d.SampleSize) * diff * diff
			}
			agg.WeightedVariance /= totalN
		}
		if accN > 0 {
			acc := accSum / accN
			agg.MeanAccuracy = &acc
		}
		if len(eligible) > 0 {
			agg.Universal = float64(agg.DomainsAboveThreshold)/float64(len(eligible)) >= v.config.UniversalFraction
		}
		if agg.Universal {
			report.UniversalProperties = append(report.UniversalProperties, f)
		}
		report.Fields = append(report.Fields, agg)
	}

	if len(eligible) == 0 {
		return
	}

	best := report.Fields[0]
	for _, agg := range report.Fields[1:] {
		if betterField(agg, best) {
			best = agg
		}
	}
	report.BestField = best.Field
	report.OverallCorrelation = best.WeightedMeanAbsR
	report.ConsistencyScore = consistency(best)
}

const fieldTieTolerance = 1e-12

// betterField orders by weighted mean |r|, then lower variance. Equal
// candidates keep the earlier field in canonical order.
func betterField(a, b stats.FieldAggregate) bool {
	if d := a.WeightedMeanAbsR - b.WeightedMeanAbsR; math.Abs(d) > fieldTieTolerance {
		return d > 0
	}
	if d := a.WeightedVariance - b.WeightedVariance; math.Abs(d) > fieldTieTolerance {
		return d < 0
	}
	return false
}

// consistency is 1 − var/mean of the best field's per-domain |r|, clipped to [0,1].
func consistency(agg stats.FieldAggregate) float64 {
	if agg.WeightedMeanAbsR <= 0 {
		return 0
	}
	c := 1 - agg.WeightedVariance/agg.WeightedMeanAbsR
	return math.Max(0, math.Min(1, c))
}

func (v *Validator) workers(n int) int {
	if v.config.Workers > 0 && v.config.Workers < n {
		return v.config.Workers
	}
	if n < 1 {
		return 1
	}
	return n
}

func reportID(def domformula.Definition, corpus *Corpus) (core.ReportID, error) {
	canonical, err := json.Marshal(struct {
		Formula domformula.Definition `json:"formula"`
		Domains []core.DomainID       `json:"domains"`
		Limit   int                   `json:"limit"`
	}{def, corpus.DomainIDs(), corpus.Limit})
	if err != nil {
		return "", fmt.Errorf("failed to encode report identity: %w", err)
	}
	return core.ReportID(core.NewDeterministicID(canonical)), nil
}
