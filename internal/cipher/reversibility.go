package cipher

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	domcipher "gonomen/domain/cipher"
	"gonomen/domain/encoding"
)

// ridge keeps the normal equations solvable when encoding fields are constant.
const ridge = 1e-6

// reversibility splits samples into even-index references and odd-index
// probes, then measures how well probe features are recovered from probe
// encodings by nearest-neighbour lookup and by linear regression.
func (d *Detector) reversibility(samples []sample) (domcipher.Reversibility, error) {
	var refs, probes []sample
	for i, s := range samples {
		if i%2 == 0 {
			refs = append(refs, s)
		} else {
			probes = append(probes, s)
		}
	}
	out := domcipher.Reversibility{ReferenceSize: len(refs), ProbeSize: len(probes)}

	totalErr, within := 0.0, 0
	for _, p := range probes {
		nearest, best := 0, math.Inf(1)
		for i, r := range refs {
			if dist := encoding.Distance(p.encoding, r.encoding); dist < best {
				nearest, best = i, dist
			}
		}
		e := featureError(p.features.NormalizedSlice(), refs[nearest].features.NormalizedSlice())
		totalErr += e
		if e <= d.config.ReversibilityTolerance {
			within++
		}
	}
	out.NearestNeighbor = 1 - totalErr/float64(len(probes))
	out.WithinTolerance = float64(within) / float64(len(probes))

	r2, err := linearR2(refs, probes)
	if err != nil {
		return out, err
	}
	out.LinearR2 = r2
	out.Score = (out.NearestNeighbor + math.Max(0, r2)) / 2
	return out, nil
}

func featureError(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a))
}

// linearR2 fits features ≈ [1, encoding]·B on the references with a small
// ridge term and returns the pooled R² on the probes.
func linearR2(refs, probes []sample) (float64, error) {
	design := func(set []sample) (*mat.Dense, *mat.Dense) {
		cols := encoding.NumFields + 1
		x := mat.NewDense(len(set), cols, nil)
		var y *mat.Dense
		for i, s := range set {
			x.Set(i, 0, 1)
			for j, v := range s.encoding.NormalizedValues() {
				x.Set(i, j+1, v)
			}
			fv := s.features.NormalizedSlice()
			if y == nil {
				y = mat.NewDense(len(set), len(fv), nil)
			}
			y.SetRow(i, fv)
		}
		return x, y
	}

	xr, yr := design(refs)
	var xtx, xty, coef mat.Dense
	xtx.Mul(xr.T(), xr)
	n, _ := xtx.Dims()
	for i := 0; i < n; i++ {
		xtx.Set(i, i, xtx.At(i, i)+ridge)
	}
	xty.Mul(xr.T(), yr)
	if err := coef.Solve(&xtx, &xty); err != nil {
		return 0, fmt.Errorf("linear reconstruction failed: %w", err)
	}

	xp, yp := design(probes)
	var pred mat.Dense
	pred.Mul(xp, &coef)

	rows, cols := yp.Dims()
	ssRes, ssTot := 0.0, 0.0
	for j := 0; j < cols; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += yp.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			diff := yp.At(i, j) - pred.At(i, j)
			ssRes += diff * diff
			dev := yp.At(i, j) - mean
			ssTot += dev * dev
		}
	}
	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}
