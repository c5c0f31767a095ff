package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

func newJob(id string) *model.Job {
	return &model.Job{
		ID:        id,
		Status:    model.JobStatusPending,
		Request:   model.PlaylistRequest{Description: "test playlist " + id},
		Progress:  "Queued",
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	job, err := s.Get("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if job.Progress != "Queued" {
		t.Errorf("expected Queued, got %q", job.Progress)
	}
}

func TestGetUnknown(t *testing.T) {
	s := New()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New()
	s.Create(newJob("a"))

	snap, _ := s.Get("a")
	s.SetProcessing("a", "working")

	if snap.Status != model.JobStatusPending {
		t.Error("snapshot mutated by later write")
	}
	cur, _ := s.Get("a")
	if cur.Status != model.JobStatusProcessing {
		t.Errorf("expected processing, got %s", cur.Status)
	}
}

func TestTerminalIsMonotonic(t *testing.T) {
	s := New()
	s.Create(newJob("a"))
	s.Complete("a", &model.PlaylistResult{TrackCount: 3}, "Done in 2s!")

	// Every later transition must be ignored
	s.Fail("a", &model.JobError{Kind: model.ErrKindPermanent, Message: "late"})
	s.SetProgress("a", "late label")
	s.SetProcessing("a", "late")

	job, _ := s.Get("a")
	if job.Status != model.JobStatusCompleted {
		t.Errorf("terminal status overwritten: %s", job.Status)
	}
	if job.Error != nil {
		t.Error("completed job carries an error")
	}
	if job.Result == nil || job.Result.TrackCount != 3 {
		t.Error("completed job lost its result")
	}
	if job.Progress != "Done in 2s!" {
		t.Errorf("progress overwritten: %q", job.Progress)
	}
}

func TestFailClearsResult(t *testing.T) {
	s := New()
	s.Create(newJob("a"))
	s.Fail("a", &model.JobError{Kind: model.ErrKindTransient, Message: "upstream down"})

	job, _ := s.Get("a")
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Result != nil {
		t.Error("failed job carries a result")
	}
	if job.Error == nil || job.Error.Kind != model.ErrKindTransient {
		t.Errorf("missing or wrong error: %+v", job.Error)
	}
	if job.CompletedAt == nil {
		t.Error("failed job missing completion time")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := New()
	s.Create(newJob("a"))
	s.Delete("a")
	s.Delete("a")
	s.Delete("never-existed")

	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWritesAfterDeleteAreNoOps(t *testing.T) {
	s := New()
	s.Create(newJob("a"))
	s.Delete("a")

	// The executor may still be running; its writes must not resurrect the job
	s.SetProcessing("a", "working")
	s.Complete("a", &model.PlaylistResult{}, "done")

	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted job resurrected: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestListOrderAndLimit(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Create(newJob(fmt.Sprintf("j%d", i)))
	}
	s.Delete("j3")

	all := s.List(0)
	if len(all) != 4 {
		t.Fatalf("expected 4 summaries, got %d", len(all))
	}
	if all[0].ID != "j4" || all[1].ID != "j2" {
		t.Errorf("wrong order: %s, %s", all[0].ID, all[1].ID)
	}

	limited := s.List(2)
	if len(limited) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(limited))
	}
	if limited[0].ID != "j4" {
		t.Errorf("expected newest first, got %s", limited[0].ID)
	}
}

func TestSweep(t *testing.T) {
	s := New()
	s.Create(newJob("old"))
	s.Create(newJob("fresh"))
	s.Create(newJob("running"))

	s.Complete("old", &model.PlaylistResult{}, "done")
	s.Complete("fresh", &model.PlaylistResult{}, "done")
	s.SetProcessing("running", "working")

	// Backdate the old job's completion
	past := time.Now().Add(-2 * time.Hour)
	s.mu.Lock()
	s.jobs["old"].CompletedAt = &past
	s.mu.Unlock()

	if n := s.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, err := s.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Error("expired job still present")
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Error("fresh terminal job swept")
	}
	if _, err := s.Get("running"); err != nil {
		t.Error("running job swept")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			s.Create(newJob(id))
			s.SetProcessing(id, "working")
			s.Get(id)
			s.List(10)
			s.Complete(id, &model.PlaylistResult{}, "done")
		}(i)
	}
	wg.Wait()

	if s.Len() != 20 {
		t.Errorf("expected 20 jobs, got %d", s.Len())
	}
	for _, sum := range s.List(0) {
		if sum.Status != model.JobStatusCompleted {
			t.Errorf("job %s not completed: %s", sum.ID, sum.Status)
		}
	}
}
