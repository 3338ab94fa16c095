// ABOUTME: Job types and the in-memory tracker for message-processing jobs.
// ABOUTME: Jobs are transient bookkeeping; durable history lives in the store.

package job

import (
	"log/slog"
	"sync"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job tracks one message through its turn: submission, streaming, terminal
// state. ThreadID is filled in once the canonical thread id is known.
type Job struct {
	ID        string     `json:"job_id"`
	ClientID  string     `json:"client_id"`
	AgentType string     `json:"agent_type"`
	ThreadID  string     `json:"thread_id,omitempty"`
	Status    Status     `json:"status"`
	Err       string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Tracker is the mutex-guarded job map. Lookups return value snapshots so
// callers never see a job mid-transition.
type Tracker struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger *slog.Logger
}

// NewTracker creates an empty tracker. Pass nil logger for default.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		jobs:   make(map[string]*Job),
		logger: logger.With("component", "jobs"),
	}
}

// Add registers a new job.
func (t *Tracker) Add(j *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[j.ID] = j
}

// Get returns a snapshot of the job.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// SetProcessing moves a queued job to processing. No-op once terminal.
func (t *Tracker) SetProcessing(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j, ok := t.jobs[id]; ok && !j.Status.Terminal() {
		j.Status = StatusProcessing
	}
}

// SetThread records the canonical thread id on the job.
func (t *Tracker) SetThread(id, threadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j, ok := t.jobs[id]; ok {
		j.ThreadID = threadID
	}
}

// Finish moves the job to a terminal status and stamps EndedAt. If the job is
// already terminal the call is a no-op and returns false, so completion and
// stop cannot double-fire.
func (t *Tracker) Finish(id string, status Status, errMsg string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	if j.Status.Terminal() {
		return *j, false
	}

	now := time.Now().UTC()
	j.Status = status
	j.Err = errMsg
	j.EndedAt = &now
	return *j, true
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// PurgeExpired drops terminal jobs whose EndedAt is older than the retention
// window. Returns the number removed. Driven by a periodic sweep.
func (t *Tracker) PurgeExpired(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	purged := 0
	for id, j := range t.jobs {
		if j.Status.Terminal() && j.EndedAt != nil && j.EndedAt.Before(cutoff) {
			delete(t.jobs, id)
			purged++
		}
	}
	if purged > 0 {
		t.logger.Debug("purged expired jobs", "purged", purged, "remaining", len(t.jobs))
	}
	return purged
}
