package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonomen/domain/core"
	domevolution "gonomen/domain/evolution"
	"gonomen/internal"
	apperrors "gonomen/internal/errors"
	"gonomen/internal/evolution"
	"gonomen/ports"
)

// JobStatus is the lifecycle state of an evolution job
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// JobView is the JSON snapshot of a job
type JobView struct {
	ID         core.JobID            `json:"id"`
	HistoryID  core.HistoryID        `json:"history_id"`
	Status     JobStatus             `json:"status"`
	Progress   domevolution.Progress `json:"progress"`
	Config     domevolution.Config   `json:"config"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

type job struct {
	id         core.JobID
	historyID  core.HistoryID
	config     domevolution.Config
	tracker    *evolution.Tracker
	cancel     context.CancelFunc
	done       chan struct{}
	status     JobStatus
	history    *domevolution.History
	err        error
	createdAt  time.Time
	finishedAt *time.Time
}

// JobManager runs evolutions in the background. Each job owns its tracker
// and cancel function; the table is guarded by one mutex.
type JobManager struct {
	evolver   *evolution.Evolver
	histories ports.HistoryRepository
	hub       *SSEHub
	logger    *internal.Logger

	mu   sync.Mutex
	jobs map[core.JobID]*job
}

// NewJobManager creates a job manager. histories and hub may be nil.
func NewJobManager(evolver *evolution.Evolver, histories ports.HistoryRepository, hub *SSEHub, logger *internal.Logger) *JobManager {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &JobManager{
		evolver:   evolver,
		histories: histories,
		hub:       hub,
		logger:    logger.With("Jobs"),
		jobs:      make(map[core.JobID]*job),
	}
}

// Start validates cfg and launches the run.
func (m *JobManager) Start(cfg domevolution.Config) (JobView, error) {
	if err := evolution.ValidateConfig(cfg); err != nil {
		return JobView{}, err
	}
	historyID, err := evolution.HistoryID(cfg)
	if err != nil {
		return JobView{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        core.JobID(core.NewID()),
		historyID: historyID,
		config:    cfg,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    JobRunning,
		createdAt: time.Now().UTC(),
	}
	j.tracker = evolution.NewTrackerWithListener(func(p domevolution.Progress) {
		if m.hub != nil {
			m.hub.Broadcast(ProgressEvent{JobID: j.id, EventType: "progress", Progress: p, Timestamp: time.Now().UTC()})
		}
	})

	m.mu.Lock()
	m.jobs[j.id] = j
	m.mu.Unlock()

	go m.run(ctx, j)
	m.logger.Info("job %s started: %s over %v", j.id, cfg.FormulaType, cfg.Domains)
	return m.view(j), nil
}

func (m *JobManager) run(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	h, err := m.evolver.EvolveTracked(ctx, j.config, j.tracker)
	if err == nil && m.histories != nil && h.StopReason != domevolution.StopCancelled {
		if saveErr := m.histories.Save(context.Background(), h); saveErr != nil {
			m.logger.Warn("job %s: failed to persist history %s: %v", j.id, h.ID, saveErr)
		}
	}

	m.mu.Lock()
	now := time.Now().UTC()
	j.finishedAt = &now
	j.history = h
	j.err = err
	switch {
	case err != nil:
		j.status = JobFailed
	case h.StopReason == domevolution.StopCancelled:
		j.status = JobCancelled
	default:
		j.status = JobCompleted
	}
	status := j.status
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.Broadcast(ProgressEvent{JobID: j.id, EventType: string(status), Progress: j.tracker.Progress(), Timestamp: now})
	}
	if err != nil {
		m.logger.Error("job %s failed: %v", j.id, err)
		return
	}
	m.logger.Info("job %s %s: best fitness %.4f after %d generations", j.id, status, h.Best.Fitness, len(h.Generations))
}

// Get returns a job snapshot.
func (m *JobManager) Get(id core.JobID) (JobView, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return JobView{}, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	return m.view(j), nil
}

// History returns the history of a finished job.
func (m *JobManager) History(id core.JobID) (*domevolution.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	if j.history == nil {
		return nil, apperrors.Conflict(fmt.Sprintf("job %s is still running", id))
	}
	return j.history, nil
}

// Cancel stops a running job. Cancelling a finished job is a no-op.
func (m *JobManager) Cancel(id core.JobID) (JobView, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return JobView{}, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	j.cancel()
	return m.view(j), nil
}

// Wait blocks until the job finishes or ctx ends.
func (m *JobManager) Wait(ctx context.Context, id core.JobID) (JobView, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return JobView{}, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	select {
	case <-j.done:
		return m.view(j), nil
	case <-ctx.Done():
		return JobView{}, ctx.Err()
	}
}

// List returns every job, newest first.
func (m *JobManager) List() []JobView {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	out := make([]JobView, len(jobs))
	for i, j := range jobs {
		out[i] = m.view(j)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out
}

// Shutdown cancels every running job and waits for them to stop.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *JobManager) view(j *job) JobView {
	progress := j.tracker.Progress()
	m.mu.Lock()
	defer m.mu.Unlock()
	v := JobView{
		ID:         j.id,
		HistoryID:  j.historyID,
		Status:     j.status,
		Progress:   progress,
		Config:     j.config,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	return v
}
