package senses

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// SenseResult represents the output of a single statistical sense
type SenseResult struct {
	SenseName   string                 `json:"sense_name"`
	EffectSize  float64                `json:"effect_size"`
	PValue      float64                `json:"p_value"`
	Confidence  float64                `json:"confidence"` // 0-1 confidence score
	Signal      string                 `json:"signal"`     // "weak", "moderate", "strong", "very_strong"
	Degenerate  bool                   `json:"degenerate"` // zero variance or too few samples
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// StatisticalSense measures the association between an encoding field and outcomes
type StatisticalSense interface {
	Name() string
	Description() string
	Analyze(ctx context.Context, x, y []float64, field string) SenseResult
}

// SenseEngine orchestrates the correlation senses
type SenseEngine struct {
	senses []StatisticalSense
}

// NewSenseEngine creates a new statistical senses engine
func NewSenseEngine() *SenseEngine {
	return &SenseEngine{
		senses: []StatisticalSense{
			NewPearsonSense(),
			NewSpearmanSense(),
		},
	}
}

// AnalyzeAll runs all senses concurrently and returns results in sense order
func (e *SenseEngine) AnalyzeAll(ctx context.Context, x, y []float64, field string) []SenseResult {
	results := make([]SenseResult, len(e.senses))

	type resultWithIndex struct {
		result SenseResult
		index  int
	}

	resultChan := make(chan resultWithIndex, len(e.senses))

	for i, sense := range e.senses {
		go func(sense StatisticalSense, idx int) {
			resultChan <- resultWithIndex{result: sense.Analyze(ctx, x, y, field), index: idx}
		}(sense, i)
	}

	for i := 0; i < len(e.senses); i++ {
		res := <-resultChan
		results[res.index] = res.result
	}

	return results
}

// AnalyzeSingle runs a specific sense by name
func (e *SenseEngine) AnalyzeSingle(ctx context.Context, senseName string, x, y []float64, field string) (SenseResult, bool) {
	for _, sense := range e.senses {
		if sense.Name() == senseName {
			return sense.Analyze(ctx, x, y, field), true
		}
	}
	return SenseResult{}, false
}

// ListSenses returns all available sense names
func (e *SenseEngine) ListSenses() []string {
	names := make([]string, len(e.senses))
	for i, sense := range e.senses {
		names[i] = sense.Name()
	}
	return names
}

// Helper functions for result interpretation

// classifySignal converts a correlation magnitude to signal strength
func classifySignal(effectSize float64) string {
	absEffect := math.Abs(effectSize)
	if absEffect < 0.2 {
		return "weak"
	} else if absEffect < 0.5 {
		return "moderate"
	} else if absEffect < 0.8 {
		return "strong"
	}
	return "very_strong"
}

// calculateConfidence converts p-value to confidence score (0-1)
func calculateConfidence(pValue float64) float64 {
	if pValue >= 1.0 {
		return 0.0
	}
	if pValue <= 0.001 {
		return 0.99
	}
	return math.Min(0.99, -math.Log10(pValue)/3.0)
}

// correlationPValue is the two-sided p-value of a correlation coefficient
// under the null of no association, via Student's t with n-2 degrees of freedom.
func correlationPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return 1.0
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return math.Max(0, math.Min(1, p))
}

func degenerate(name, reason string) SenseResult {
	return SenseResult{
		SenseName:   name,
		EffectSize:  0,
		PValue:      1.0,
		Confidence:  0,
		Signal:      "weak",
		Degenerate:  true,
		Description: reason,
	}
}

func constant(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}
