// Package stats defines validation reports produced by scoring a formula
// against domain outcomes.
package stats

import (
	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/formula"
)

// DomainStatus records whether a domain contributed to the aggregates.
type DomainStatus string

const (
	DomainOK               DomainStatus = "ok"
	DomainInsufficientData DomainStatus = "insufficient_data"
	DomainUnavailable      DomainStatus = "unavailable"
)

// WarningKind classifies an isolated per-domain or per-entity problem.
type WarningKind string

const (
	WarningShortSample      WarningKind = "short_sample"      // fewer entities than requested
	WarningInsufficientData WarningKind = "insufficient_data" // below minimum sample size
	WarningLoadFailed       WarningKind = "load_failed"
	WarningInvalidEntity    WarningKind = "invalid_entity"
	WarningInvalidFeatures  WarningKind = "invalid_features"
)

// Warning is attached to a report instead of aborting the batch.
type Warning struct {
	Domain  core.DomainID `json:"domain"`
	Entity  string        `json:"entity,omitempty"`
	Kind    WarningKind   `json:"kind"`
	Message string        `json:"message"`
}

// SkippedItem names a domain or entity left out of the sample and why.
type SkippedItem struct {
	Domain core.DomainID `json:"domain"`
	Entity string        `json:"entity,omitempty"`
	Reason WarningKind   `json:"reason"`
}

// Classifier is a monotonic single-threshold rule fitted on one field.
// Direction is +1 when values at or above Threshold predict success.
type Classifier struct {
	Threshold float64 `json:"threshold"`
	Direction int     `json:"direction"`
	Accuracy  float64 `json:"accuracy"`
}

// FieldCorrelation is the association of one encoding field with outcomes.
// A field with zero variance is Degenerate and reports r = 0, p = 1.
type FieldCorrelation struct {
	Field      encoding.Field `json:"field"`
	Pearson    float64        `json:"pearson_r"`
	PearsonP   float64        `json:"pearson_p"`
	Spearman   float64        `json:"spearman_rho"`
	SpearmanP  float64        `json:"spearman_p"`
	Degenerate bool           `json:"degenerate,omitempty"`
	Classifier *Classifier    `json:"classifier,omitempty"`
}

// DomainValidation holds the per-domain results of a validation run.
type DomainValidation struct {
	Domain     core.DomainID      `json:"domain"`
	Status     DomainStatus       `json:"status"`
	Requested  int                `json:"requested"`
	Loaded     int                `json:"loaded"`
	SampleSize int                `json:"sample_size"`
	Labeled    int                `json:"labeled"`
	Fields     []FieldCorrelation `json:"fields,omitempty"`
}

// Eligible reports whether the domain contributes to cross-domain aggregates.
func (d DomainValidation) Eligible() bool {
	return d.Status == DomainOK
}

// Field returns the correlation entry of f.
func (d DomainValidation) Field(f encoding.Field) (FieldCorrelation, bool) {
	for _, fc := range d.Fields {
		if fc.Field == f {
			return fc, true
		}
	}
	return FieldCorrelation{}, false
}

// FieldAggregate summarizes one field over all eligible domains.
type FieldAggregate struct {
	Field                 encoding.Field `json:"field"`
	WeightedMeanAbsR      float64        `json:"weighted_mean_abs_r"`
	WeightedVariance      float64        `json:"weighted_variance"`
	DomainsAboveThreshold int            `json:"domains_above_threshold"`
	EligibleDomains       int            `json:"eligible_domains"`
	MeanAccuracy          *float64       `json:"mean_accuracy,omitempty"`
	Universal             bool           `json:"universal"`
}

// CrossDomainReport is the write-once result of validating one formula.
type CrossDomainReport struct {
	ID                  core.ReportID      `json:"id"`
	Formula             formula.Definition `json:"formula"`
	LimitPerDomain      int                `json:"limit_per_domain"`
	Threshold           float64            `json:"threshold"`
	MinSampleSize       int                `json:"min_sample_size"`
	Domains             []DomainValidation `json:"domains"`
	Fields              []FieldAggregate   `json:"fields"`
	BestField           encoding.Field     `json:"best_field,omitempty"`
	OverallCorrelation  float64            `json:"overall_correlation"`
	ConsistencyScore    float64            `json:"consistency_score"`
	UniversalProperties []encoding.Field   `json:"universal_properties"`
	Warnings            []Warning          `json:"warnings"`
	Skipped             []SkippedItem      `json:"skipped"`
}

// EligibleDomains returns the domains that contributed to the aggregates.
func (r CrossDomainReport) EligibleDomains() []core.DomainID {
	var out []core.DomainID
	for _, d := range r.Domains {
		if d.Eligible() {
			out = append(out, d.Domain)
		}
	}
	return out
}

// Aggregate returns the aggregate entry of f.
func (r CrossDomainReport) Aggregate(f encoding.Field) (FieldAggregate, bool) {
	for _, a := range r.Fields {
		if a.Field == f {
			return a, true
		}
	}
	return FieldAggregate{}, false
}

// HasWarning reports whether any warning of the given kind was raised.
func (r CrossDomainReport) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
