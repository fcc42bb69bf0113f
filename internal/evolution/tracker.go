package evolution

import (
	"sync"

	"gonomen/domain/evolution"
)

// Tracker exposes the progress of one run for polling. The zero value is
// ready to use.
type Tracker struct {
	mu       sync.RWMutex
	progress evolution.Progress
	listener func(evolution.Progress)
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewTrackerWithListener creates a tracker that also pushes every snapshot
// to fn. fn runs on the evolving goroutine and must not block.
func NewTrackerWithListener(fn func(evolution.Progress)) *Tracker {
	return &Tracker{listener: fn}
}

// Progress returns a snapshot.
func (t *Tracker) Progress() evolution.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

func (t *Tracker) start(generations int) {
	t.set(func(p *evolution.Progress) {
		*p = evolution.Progress{Running: true, Generations: generations}
	})
}

func (t *Tracker) update(generation int, bestFitness float64) {
	t.set(func(p *evolution.Progress) {
		p.Generation = generation
		p.BestFitness = bestFitness
	})
}

func (t *Tracker) finish() {
	t.set(func(p *evolution.Progress) { p.Running = false })
}

func (t *Tracker) set(fn func(*evolution.Progress)) {
	t.mu.Lock()
	fn(&t.progress)
	snapshot := t.progress
	t.mu.Unlock()
	if t.listener != nil {
		t.listener(snapshot)
	}
}
