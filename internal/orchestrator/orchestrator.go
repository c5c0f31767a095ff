// Package orchestrator accepts playlist jobs, keeps them in a FIFO queue
// and fans them out to a fixed pool of workers. It is the only writer of
// job lifecycle state; HTTP handlers observe through the store and hub.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/events"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/store"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/telemetry"
)

var errShuttingDown = errors.New("orchestrator is shutting down")

// Runner executes a job to a terminal state. Satisfied by
// *pipeline.Executor; tests substitute stubs.
type Runner interface {
	Execute(ctx context.Context, job model.Job)
}

// Orchestrator owns the queue, the worker pool and per-job cancellation.
type Orchestrator struct {
	cfg    config.PipelineConfig
	store  *store.Store
	hub    *events.Hub
	runner Runner

	mu      sync.Mutex
	queue   []model.Job
	cancels map[string]context.CancelFunc

	notify   chan struct{}
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	shutdown bool
}

// New builds an orchestrator. Call Start before submitting.
func New(cfg config.PipelineConfig, st *store.Store, hub *events.Hub, runner Runner) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		hub:     hub,
		runner:  runner,
		cancels: make(map[string]context.CancelFunc),
		notify:  make(chan struct{}, 1),
		baseCtx: baseCtx,
		stop:    stop,
	}
}

// Start launches the worker pool and the retention janitor. Idempotent.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	if o.cfg.Retention > 0 && o.cfg.SweepInterval > 0 {
		o.wg.Add(1)
		go o.janitor()
	}
	log.Printf("Orchestrator started with %d workers", o.cfg.Workers)
}

// Shutdown stops accepting work, cancels in-flight jobs and waits for the
// workers to drain, up to ctx's deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.shutdown = true
	o.mu.Unlock()

	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the request, registers a pending job and enqueues it.
// The returned job reflects the state visible to an immediate status poll.
func (o *Orchestrator) Submit(req model.PlaylistRequest) (*model.Job, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, model.InvalidRequest(errors.New("description must not be empty"))
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		Status:    model.JobStatusPending,
		Request:   req,
		Progress:  "Queued",
		CreatedAt: time.Now(),
	}

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return nil, model.Transient(errShuttingDown)
	}
	o.store.Create(job)
	o.queue = append(o.queue, *job)
	telemetry.QueueDepthGauge.Set(float64(len(o.queue)))
	o.mu.Unlock()

	telemetry.JobsSubmitted.Inc()
	o.wake()
	return job, nil
}

// GetStatus returns a snapshot of the job, or store.ErrNotFound.
func (o *Orchestrator) GetStatus(jobID string) (model.Job, error) {
	return o.store.Get(jobID)
}

// List returns recent job summaries, newest first.
func (o *Orchestrator) List(limit int) []model.JobSummary {
	return o.store.List(limit)
}

// Subscribe attaches a progress stream to a known job. The caller owns the
// subscription and must Unsubscribe when done reading. Attachment happens
// before the snapshot read: a terminal event racing with Subscribe is then
// either visible in the snapshot or delivered on the channel, never lost.
func (o *Orchestrator) Subscribe(jobID string) (*events.Subscription, model.Job, error) {
	sub := o.hub.Subscribe(jobID)
	job, err := o.store.Get(jobID)
	if err != nil {
		o.hub.Unsubscribe(sub)
		return nil, model.Job{}, err
	}
	return sub, job, nil
}

// Unsubscribe detaches a subscription created by Subscribe.
func (o *Orchestrator) Unsubscribe(sub *events.Subscription) {
	o.hub.Unsubscribe(sub)
}

// Cancel requests cooperative cancellation. Terminal jobs are left alone;
// a queued job is cancelled before any stage runs.
func (o *Orchestrator) Cancel(jobID string) (model.Job, error) {
	job, err := o.store.Get(jobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	o.mu.Lock()
	cancel, inflight := o.cancels[jobID]
	if !inflight {
		// Still queued. Mark it so the worker skips it on dequeue.
		for i := range o.queue {
			if o.queue[i].ID == jobID {
				o.queue = append(o.queue[:i], o.queue[i+1:]...)
				telemetry.QueueDepthGauge.Set(float64(len(o.queue)))
				break
			}
		}
	}
	o.mu.Unlock()

	if inflight {
		cancel()
	} else {
		jobErr := &model.JobError{Kind: model.ErrKindCancelled, Message: "cancelled by request"}
		o.store.Fail(jobID, jobErr)
		o.hub.Publish(model.ProgressEvent{
			JobID:    jobID,
			Status:   model.JobStatusFailed,
			Progress: "Failed",
			Error:    jobErr,
		})
	}
	telemetry.JobsCancelled.Inc()
	return o.store.Get(jobID)
}

// Delete removes the job from the store. A run already in flight keeps
// going but its terminal write will land on a deleted id and no-op.
func (o *Orchestrator) Delete(jobID string) error {
	if _, err := o.store.Get(jobID); err != nil {
		return err
	}
	o.store.Delete(jobID)
	return nil
}

// QueueDepth reports jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Orchestrator) wake() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()
	for {
		select {
		case <-o.baseCtx.Done():
			return
		case <-o.notify:
		}

		for {
			job, ctx, cancel, ok := o.dequeue()
			if !ok {
				break
			}
			o.run(ctx, cancel, job)
		}
	}
}

// dequeue pops the next job and registers its cancel func under the same
// lock, so Cancel sees the job as in-flight the moment it leaves the queue.
func (o *Orchestrator) dequeue() (model.Job, context.Context, context.CancelFunc, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return model.Job{}, nil, nil, false
	}
	job := o.queue[0]
	o.queue = o.queue[1:]
	telemetry.QueueDepthGauge.Set(float64(len(o.queue)))
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.cancels[job.ID] = cancel
	if len(o.queue) > 0 {
		// More work behind us. Wake another worker.
		select {
		case o.notify <- struct{}{}:
		default:
		}
	}
	return job, ctx, cancel, true
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, job model.Job) {
	telemetry.InFlightGauge.Inc()
	defer func() {
		telemetry.InFlightGauge.Dec()
		o.mu.Lock()
		delete(o.cancels, job.ID)
		o.mu.Unlock()
		cancel()
	}()

	o.runner.Execute(ctx, job)
}

// janitor drops terminal jobs older than the retention window so the
// in-memory store does not grow without bound.
func (o *Orchestrator) janitor() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.baseCtx.Done():
			return
		case <-ticker.C:
			if n := o.store.Sweep(o.cfg.Retention); n > 0 {
				log.Printf("Swept %d expired jobs", n)
			}
		}
	}
}
