package senses

import (
	"sort"
)

// ThresholdFit is the best monotonic single-split rule for binary labels.
// Direction +1 predicts success for values at or above Threshold, -1 below it.
type ThresholdFit struct {
	Threshold float64 `json:"threshold"`
	Direction int     `json:"direction"`
	Accuracy  float64 `json:"accuracy"`
	Samples   int     `json:"samples"`
}

// ThresholdSense fits a monotonic threshold classifier of labels on a field
type ThresholdSense struct{}

// NewThresholdSense creates a new threshold classifier sense
func NewThresholdSense() *ThresholdSense {
	return &ThresholdSense{}
}

// Name returns the sense name
func (s *ThresholdSense) Name() string {
	return "threshold_classifier"
}

// Fit scans every distinct value as a candidate threshold in both directions.
// Ties keep the lower threshold and the positive direction. Returns false
// when there are no samples or lengths differ.
func (s *ThresholdSense) Fit(x []float64, labels []bool) (ThresholdFit, bool) {
	n := len(x)
	if n == 0 || n != len(labels) {
		return ThresholdFit{}, false
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	totalPos := 0
	for _, l := range labels {
		if l {
			totalPos++
		}
	}

	best := ThresholdFit{Threshold: x[idx[0]], Direction: 1, Accuracy: -1, Samples: n}
	posBelow := 0
	for k := 0; k < n; k++ {
		if k == 0 || x[idx[k]] != x[idx[k-1]] {
			negBelow := k - posBelow
			up := negBelow + (totalPos - posBelow)
			down := n - up
			if acc := float64(up) / float64(n); acc > best.Accuracy {
				best = ThresholdFit{Threshold: x[idx[k]], Direction: 1, Accuracy: acc, Samples: n}
			}
			if acc := float64(down) / float64(n); acc > best.Accuracy {
				best = ThresholdFit{Threshold: x[idx[k]], Direction: -1, Accuracy: acc, Samples: n}
			}
		}
		if labels[idx[k]] {
			posBelow++
		}
	}
	return best, true
}

// Predict applies a fitted rule.
func (f ThresholdFit) Predict(v float64) bool {
	if f.Direction >= 0 {
		return v >= f.Threshold
	}
	return v < f.Threshold
}
