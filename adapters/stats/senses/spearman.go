package senses

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SpearmanSense detects monotonic relationships using rank correlation
type SpearmanSense struct{}

// NewSpearmanSense creates a new Spearman correlation sense
func NewSpearmanSense() *SpearmanSense {
	return &SpearmanSense{}
}

// Name returns the sense name
func (s *SpearmanSense) Name() string {
	return "spearman"
}

// Description returns a human-readable description
func (s *SpearmanSense) Description() string {
	return "Detects monotonic relationships robust to outliers and non-normality"
}

// Analyze computes Spearman's rank correlation coefficient
func (s *SpearmanSense) Analyze(ctx context.Context, x, y []float64, field string) SenseResult {
	if len(x) != len(y) || len(x) < 3 {
		return degenerate(s.Name(), "Insufficient data for Spearman correlation analysis")
	}
	if constant(x) || constant(y) {
		return degenerate(s.Name(), fmt.Sprintf("Zero variance in %s or outcome", field))
	}

	rho := s.computeSpearmanCorrelation(x, y)
	pValue := correlationPValue(rho, len(x))

	return SenseResult{
		SenseName:   s.Name(),
		EffectSize:  rho,
		PValue:      pValue,
		Confidence:  calculateConfidence(pValue),
		Signal:      classifySignal(rho),
		Description: s.generateDescription(rho, pValue, field),
		Metadata: map[string]interface{}{
			"correlation_type":       "rank",
			"robust_to_outliers":     true,
			"monotonic_relationship": true,
			"sample_size":            len(x),
		},
	}
}

// computeSpearmanCorrelation is the Pearson correlation of tie-averaged ranks,
// which stays exact in the presence of ties.
func (s *SpearmanSense) computeSpearmanCorrelation(x, y []float64) float64 {
	rho := stat.Correlation(s.computeRanks(x), s.computeRanks(y), nil)
	if math.IsNaN(rho) {
		return 0
	}
	return math.Max(-1, math.Min(1, rho))
}

// computeRanks converts values to ranks, handling ties properly
func (s *SpearmanSense) computeRanks(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return []float64{}
	}

	type pair struct {
		value float64
		index int
	}

	pairs := make([]pair, n)
	for i, val := range data {
		pairs[i] = pair{value: val, index: i}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)

	// Assign ranks, handling ties by averaging
	i := 0
	for i < n {
		j := i + 1

		for j < n && pairs[j].value == pairs[i].value {
			j++
		}

		groupSize := j - i
		avgRank := float64(i+1) + float64(groupSize-1)/2.0

		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avgRank
		}

		i = j
	}

	return ranks
}

// generateDescription creates a human-readable description of the Spearman result
func (s *SpearmanSense) generateDescription(rho, pValue float64, field string) string {
	if pValue > 0.05 {
		return fmt.Sprintf("No significant monotonic relationship between %s and outcome (ρ=%.3f, p=%.3f)", field, rho, pValue)
	}

	direction := "positive"
	if rho < 0 {
		direction = "negative"
	}

	return fmt.Sprintf("%s %s monotonic relationship between %s and outcome (ρ=%.3f, p=%.3g)", classifySignal(rho), direction, field, rho, pValue)
}
