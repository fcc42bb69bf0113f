package senses

import (
	"context"
	"math"
	"testing"
)

// TestSenseEngine_ConcurrentExecution verifies all senses run and report in order
func TestSenseEngine_ConcurrentExecution(t *testing.T) {
	engine := NewSenseEngine()
	ctx := context.Background()

	x := generateLinearData(100, 2.0, 1.0, 0.5)
	y := generateLinearData(100, 2.0, 1.0, 0.5)

	results := engine.AnalyzeAll(ctx, x, y, "hue")

	if len(results) != 2 {
		t.Fatalf("Expected 2 sense results, got %d", len(results))
	}
	for i, name := range engine.ListSenses() {
		if results[i].SenseName != name {
			t.Errorf("Result %d: expected sense %s, got %s", i, name, results[i].SenseName)
		}
		if results[i].PValue < 0 || results[i].PValue > 1 {
			t.Errorf("PValue should be in [0,1], got %f", results[i].PValue)
		}
		if results[i].Confidence < 0 || results[i].Confidence > 1 {
			t.Errorf("Confidence should be in [0,1], got %f", results[i].Confidence)
		}
		if results[i].Description == "" {
			t.Error("Description should not be empty")
		}
	}
}

func TestPearson_PerfectLinear(t *testing.T) {
	sense := NewPearsonSense()
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{3, 5, 7, 9, 11, 13}

	res := sense.Analyze(context.Background(), x, y, "z")
	if math.Abs(res.EffectSize-1) > 1e-12 {
		t.Errorf("Expected r=1, got %f", res.EffectSize)
	}
	if res.PValue > 1e-6 {
		t.Errorf("Expected p~0 for perfect correlation, got %g", res.PValue)
	}
}

func TestPearson_ZeroVarianceIsDegenerate(t *testing.T) {
	sense := NewPearsonSense()
	res := sense.Analyze(context.Background(), []float64{1, 1, 1, 1}, []float64{0.1, 0.5, 0.2, 0.9}, "glow")
	if !res.Degenerate {
		t.Error("Expected constant field to be flagged degenerate")
	}
	if res.EffectSize != 0 || res.PValue != 1 {
		t.Errorf("Expected r=0 p=1, got r=%f p=%f", res.EffectSize, res.PValue)
	}
}

// TestSpearman_MonotonicRelationship verifies Spearman detects rank-order patterns
func TestSpearman_MonotonicRelationship(t *testing.T) {
	sense := NewSpearmanSense()
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		y[i] = math.Exp(float64(i) / 5)
	}

	res := sense.Analyze(context.Background(), x, y, "complexity")
	if math.Abs(res.EffectSize-1) > 1e-12 {
		t.Errorf("Expected rho=1 for monotonic data, got %f", res.EffectSize)
	}
	pearson := NewPearsonSense().Analyze(context.Background(), x, y, "complexity")
	if pearson.EffectSize >= res.EffectSize {
		t.Errorf("Expected Pearson %f below Spearman for convex data", pearson.EffectSize)
	}
}

func TestSpearman_TieAveragedRanks(t *testing.T) {
	s := NewSpearmanSense()
	ranks := s.computeRanks([]float64{10, 20, 20, 30})
	want := []float64{1, 2.5, 2.5, 4}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("rank %d: expected %v, got %v", i, want[i], ranks[i])
		}
	}
}

func TestCorrelationPValue(t *testing.T) {
	if p := correlationPValue(0, 100); math.Abs(p-1) > 1e-12 {
		t.Errorf("Expected p=1 for r=0, got %f", p)
	}
	strong := correlationPValue(0.5, 100)
	weak := correlationPValue(0.1, 100)
	if strong >= weak {
		t.Errorf("Expected stronger correlation to have smaller p (%g vs %g)", strong, weak)
	}
	if p := correlationPValue(0.5, 2); p != 1 {
		t.Errorf("Expected p=1 with too few samples, got %f", p)
	}
}

func TestThresholdSense_SeparableLabels(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}
	labels := []bool{false, false, false, true, true, true}

	fit, ok := NewThresholdSense().Fit(x, labels)
	if !ok {
		t.Fatal("Expected a fit")
	}
	if fit.Accuracy != 1 || fit.Direction != 1 || fit.Threshold != 0.7 {
		t.Errorf("Expected perfect upward split at 0.7, got %+v", fit)
	}
	for i, v := range x {
		if fit.Predict(v) != labels[i] {
			t.Errorf("Predict(%v) = %v, want %v", v, fit.Predict(v), labels[i])
		}
	}
}

func TestThresholdSense_InvertedLabels(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}
	labels := []bool{true, true, true, false, false, false}

	fit, _ := NewThresholdSense().Fit(x, labels)
	if fit.Accuracy != 1 || fit.Direction != -1 {
		t.Errorf("Expected perfect downward split, got %+v", fit)
	}
}

func TestThresholdSense_OrderInvariant(t *testing.T) {
	x := []float64{0.5, 0.1, 0.9, 0.3, 0.7, 0.2}
	labels := []bool{true, false, true, false, false, true}
	a, _ := NewThresholdSense().Fit(x, labels)

	rx := []float64{0.2, 0.7, 0.3, 0.9, 0.1, 0.5}
	rl := []bool{true, false, false, true, false, true}
	b, _ := NewThresholdSense().Fit(rx, rl)

	if a != b {
		t.Errorf("Expected identical fits regardless of order: %+v vs %+v", a, b)
	}
}

// Helper functions for test data generation

func generateLinearData(n int, slope, intercept, noise float64) []float64 {
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		data[i] = slope*x + intercept + randNorm()*noise
	}
	return data
}

// Simple pseudo-random normal distribution (Box-Muller transform)
var randState = 12345.0

func randNorm() float64 {
	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u1 := randState / 2147483648.0

	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u2 := randState / 2147483648.0

	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
