package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/events"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/history"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/store"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/telemetry"
)

// Executor drives one job through the stages in fixed order, updating the
// store and publishing events as it goes. One executor instance is shared
// by all workers; per-job state lives entirely in the State value.
type Executor struct {
	cfg     config.PipelineConfig
	store   *store.Store
	hub     *events.Hub
	history *history.DB
	stages  []Stage
}

// NewExecutor wires an executor. history may be nil when persistence is
// unavailable.
func NewExecutor(cfg config.PipelineConfig, st *store.Store, hub *events.Hub, hist *history.DB, stages ...Stage) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Executor{cfg: cfg, store: st, hub: hub, history: hist, stages: stages}
}

// Execute runs the job to a terminal state. ctx is the job's cancellation
// signal; it is honored at stage boundaries only, never mid-flight.
func (e *Executor) Execute(ctx context.Context, job model.Job) {
	start := time.Now()
	jobID := job.ID

	if ctx.Err() != nil {
		e.fail(jobID, job.Request, model.ErrKindCancelled, "cancelled before execution started")
		return
	}

	e.store.SetProcessing(jobID, "Processing your request...")
	e.publish(jobID, model.JobStatusProcessing, "Processing your request...", nil, nil)

	st := &State{Request: job.Request}
	report := func(label string) {
		e.store.SetProgress(jobID, label)
		e.publish(jobID, model.JobStatusProcessing, label, nil, nil)
	}

	for _, stage := range e.stages {
		if ctx.Err() != nil {
			e.fail(jobID, job.Request, model.ErrKindCancelled, fmt.Sprintf("cancelled before stage %s", stage.Name()))
			return
		}
		if err := e.runStage(ctx, stage, st, report); err != nil {
			kind := model.KindOf(err)
			log.Printf("Job %s failed in stage %s: %v", jobID, stage.Name(), err)
			e.fail(jobID, job.Request, kind, err.Error())
			return
		}
	}

	elapsed := time.Since(start)
	result := st.Result
	if result == nil {
		e.fail(jobID, job.Request, model.ErrKindPermanent, "pipeline produced no result")
		return
	}
	result.GenerationTime = elapsed.Seconds()

	label := fmt.Sprintf("Done in %.0fs!", elapsed.Seconds())
	e.store.Complete(jobID, result, label)
	e.publish(jobID, model.JobStatusCompleted, label, result, nil)
	telemetry.JobsCompleted.Inc()
	log.Printf("Job %s completed in %.1fs with %d tracks", jobID, elapsed.Seconds(), result.TrackCount)

	e.persistSuccess(jobID, job.Request, result, label)
}

// runStage retries transient failures with exponential backoff until the
// attempt budget runs out; everything else aborts immediately.
func (e *Executor) runStage(ctx context.Context, stage Stage, st *State, report ReportFunc) error {
	started := time.Now()
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		err := stage.Run(stageCtx, st, report)
		cancel()

		if err == nil {
			st.Metrics = append(st.Metrics, StageMetric{
				Stage:    stage.Name(),
				Elapsed:  time.Since(started),
				Attempts: attempt,
			})
			telemetry.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(started).Seconds())
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.Cancelled(ctx.Err())
		}
		kind := model.KindOf(err)
		if !kind.Retryable() || attempt == e.cfg.MaxAttempts {
			return err
		}

		wait := backoffWithJitter(e.cfg.BackoffBase, e.cfg.BackoffMax, attempt)
		log.Printf("Stage %s attempt %d/%d failed (%v), retrying in %s", stage.Name(), attempt, e.cfg.MaxAttempts, err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return model.Cancelled(ctx.Err())
		}
	}
	return lastErr
}

func (e *Executor) fail(jobID string, req model.PlaylistRequest, kind model.ErrorKind, msg string) {
	jobErr := &model.JobError{Kind: kind, Message: msg}
	e.store.Fail(jobID, jobErr)
	e.publish(jobID, model.JobStatusFailed, "Failed", nil, jobErr)
	telemetry.JobsFailed.Inc()

	if e.history != nil {
		if err := e.history.SaveTask(context.Background(), history.TaskRecord{
			ID:          jobID,
			Status:      string(model.JobStatusFailed),
			Description: req.Description,
			Progress:    "Failed",
			Error:       msg,
			CompletedAt: time.Now(),
		}); err != nil {
			log.Printf("Failed to persist task %s: %v", jobID, err)
		}
	}
}

func (e *Executor) publish(jobID string, status model.JobStatus, progress string, result *model.PlaylistResult, jobErr *model.JobError) {
	e.hub.Publish(model.ProgressEvent{
		JobID:    jobID,
		Status:   status,
		Progress: progress,
		Result:   result,
		Error:    jobErr,
	})
}

func (e *Executor) persistSuccess(jobID string, req model.PlaylistRequest, result *model.PlaylistResult, label string) {
	if e.history == nil {
		return
	}
	ctx := context.Background()
	if err := e.history.SavePlaylist(ctx, jobID, result); err != nil {
		log.Printf("Failed to persist playlist %s: %v", jobID, err)
	}
	if err := e.history.SaveTask(ctx, history.TaskRecord{
		ID:          jobID,
		Status:      string(model.JobStatusCompleted),
		Description: req.Description,
		Progress:    label,
		Result:      result,
		CompletedAt: time.Now(),
	}); err != nil {
		log.Printf("Failed to persist task %s: %v", jobID, err)
	}
}

// backoffWithJitter grows the wait exponentially per attempt, capped at
// max, with up to 20% random jitter to spread retry bursts.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait)/5 + 1))
	return wait + jitter
}
