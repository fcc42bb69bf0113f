package cipher

import (
	"math"

	domcipher "gonomen/domain/cipher"
	"gonomen/domain/encoding"
)

// keySpace bins each normalized field and measures how evenly encodings
// spread over the occupied cells and over each dimension.
func (d *Detector) keySpace(samples []sample) domcipher.KeySpace {
	bins := d.config.KeySpaceBins
	dims := encoding.NumFields
	out := domcipher.KeySpace{BinsPerDimension: bins, Dimensions: dims}

	cells := make(map[uint64]int)
	marginals := make([][]int, dims)
	for j := range marginals {
		marginals[j] = make([]int, bins)
	}
	for _, s := range samples {
		var key uint64
		for j, v := range s.encoding.NormalizedValues() {
			b := bin(v, bins)
			marginals[j][b]++
			key = key*uint64(bins) + uint64(b)
		}
		cells[key]++
	}

	n := float64(len(samples))
	out.OccupiedCells = len(cells)
	for _, c := range cells {
		p := float64(c) / n
		out.Entropy -= p * math.Log2(p)
	}
	// the entropy ceiling is bounded by the sample count as well as the cell count
	totalCells := float64(dims) * math.Log2(float64(bins))
	out.MaxEntropy = math.Min(math.Log2(n), totalCells)
	if out.MaxEntropy > 0 {
		out.Uniformity = out.Entropy / out.MaxEntropy
	}

	marginalSum := 0.0
	for _, counts := range marginals {
		h := 0.0
		for _, c := range counts {
			if c == 0 {
				continue
			}
			p := float64(c) / n
			h -= p * math.Log2(p)
		}
		marginalSum += h / math.Log2(float64(bins))
	}
	out.MarginalUniformity = marginalSum / float64(dims)
	return out
}

func bin(v float64, bins int) int {
	b := int(v * float64(bins))
	if b < 0 {
		return 0
	}
	if b >= bins {
		return bins - 1
	}
	return b
}
