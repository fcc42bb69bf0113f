package senses

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// PearsonSense detects linear relationships
type PearsonSense struct{}

// NewPearsonSense creates a new Pearson correlation sense
func NewPearsonSense() *PearsonSense {
	return &PearsonSense{}
}

// Name returns the sense name
func (s *PearsonSense) Name() string {
	return "pearson"
}

// Description returns a human-readable description
func (s *PearsonSense) Description() string {
	return "Detects linear relationships between a field and outcomes"
}

// Analyze computes Pearson's product-moment correlation
func (s *PearsonSense) Analyze(ctx context.Context, x, y []float64, field string) SenseResult {
	if len(x) != len(y) || len(x) < 3 {
		return degenerate(s.Name(), "Insufficient data for Pearson correlation analysis")
	}
	if constant(x) || constant(y) {
		return degenerate(s.Name(), fmt.Sprintf("Zero variance in %s or outcome", field))
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return degenerate(s.Name(), "Correlation undefined")
	}
	r = math.Max(-1, math.Min(1, r))
	pValue := correlationPValue(r, len(x))

	return SenseResult{
		SenseName:   s.Name(),
		EffectSize:  r,
		PValue:      pValue,
		Confidence:  calculateConfidence(pValue),
		Signal:      classifySignal(r),
		Description: fmt.Sprintf("Linear association between %s and outcome (r=%.3f, p=%.3g)", field, r, pValue),
		Metadata: map[string]interface{}{
			"correlation_type": "linear",
			"sample_size":      len(x),
		},
	}
}
