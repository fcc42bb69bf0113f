package cipher

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	domcipher "gonomen/domain/cipher"
	"gonomen/domain/encoding"
)

type pairStats struct {
	pairs      int
	collisions int
	min        float64
	sum        float64
}

// collision compares every pair of encodings. Rows are split into chunks
// that run under a weighted semaphore and are reduced in chunk order.
func (d *Detector) collision(ctx context.Context, samples []sample) (domcipher.Collision, error) {
	n := len(samples)
	workers := d.workers()
	chunks := workers * 4
	if chunks > n {
		chunks = n
	}
	parts := make([]pairStats, chunks)
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for c := 0; c < chunks; c++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return domcipher.Collision{}, err
		}
		wg.Add(1)
		go func(c int) {
			defer sem.Release(1)
			defer wg.Done()
			ps := pairStats{min: math.Inf(1)}
			// interleaved rows balance the triangular workload
			for i := c; i < n; i += chunks {
				for j := i + 1; j < n; j++ {
					dist := encoding.Distance(samples[i].encoding, samples[j].encoding)
					ps.pairs++
					ps.sum += dist
					if dist < ps.min {
						ps.min = dist
					}
					if dist < d.config.CollisionEpsilon {
						ps.collisions++
					}
				}
			}
			parts[c] = ps
		}(c)
	}
	wg.Wait()

	total := pairStats{min: math.Inf(1)}
	for _, ps := range parts {
		total.pairs += ps.pairs
		total.collisions += ps.collisions
		total.sum += ps.sum
		total.min = math.Min(total.min, ps.min)
	}

	out := domcipher.Collision{Pairs: total.pairs, Epsilon: d.config.CollisionEpsilon}
	if total.pairs > 0 {
		out.MinDistance = total.min
		out.MeanDistance = total.sum / float64(total.pairs)
		out.CollisionRate = float64(total.collisions) / float64(total.pairs)
	}
	out.Resistant = out.CollisionRate < d.config.CollisionThreshold
	return out, nil
}
