// Package store holds the in-memory job directory. It is the single source
// of truth for job state: the streaming hub is a latency optimization over
// it, never a second authority.
//
// Concurrency contract: the directory itself (id lookup, listing, deletion)
// is guarded by one RWMutex. A job's mutable fields are written only through
// the methods below, by the single executor that owns the job, so readers
// always observe a consistent snapshot. Deleting a running job is legal; the
// owner's later writes simply become no-ops.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// ErrNotFound is returned for unknown or deleted job ids.
var ErrNotFound = errors.New("job not found")

// Store is a concurrency-safe directory of jobs keyed by id.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string // insertion order, oldest first
}

func New() *Store {
	return &Store{
		jobs: make(map[string]*model.Job),
	}
}

// Create registers a new job. The job is visible to readers as soon as
// Create returns.
func (s *Store) Create(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
}

// Get returns a snapshot copy of the job.
func (s *Store) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return *job, nil
}

// List returns summaries most-recent-first, bounded by limit (limit <= 0
// means no bound).
func (s *Store) List(limit int) []model.JobSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.JobSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		job, ok := s.jobs[s.order[i]]
		if !ok {
			continue
		}
		out = append(out, model.JobSummary{
			ID:          job.ID,
			Status:      job.Status,
			Description: job.Request.Description,
			Progress:    job.Progress,
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
		})
	}
	return out
}

// Delete removes the job. Idempotent; deleting a running job does not stop
// its executor.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// Len reports the number of live jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// SetProcessing moves a pending job to processing. No-op once terminal or
// after deletion.
func (s *Store) SetProcessing(id string, progress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusProcessing
	job.Progress = progress
}

// SetProgress updates the human-readable progress label.
func (s *Store) SetProgress(id string, progress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Progress = progress
}

// Complete transitions the job to its terminal completed state. Status is
// monotonic: a job already terminal is left untouched.
func (s *Store) Complete(id string, result *model.PlaylistResult, progress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.Progress = progress
	job.Result = result
	job.Error = nil
	job.CompletedAt = &now
}

// Fail transitions the job to its terminal failed state.
func (s *Store) Fail(id string, jobErr *model.JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	now := time.Now()
	job.Status = model.JobStatusFailed
	job.Progress = "Failed"
	job.Error = jobErr
	job.Result = nil
	job.CompletedAt = &now
}

// Sweep drops terminal jobs whose completion is older than maxAge and
// returns how many were removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}
