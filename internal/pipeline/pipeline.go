// Package pipeline runs a job through its four stages: interpret the
// request, retrieve candidate songs, curate and rank them, and materialize
// the playlist. Stages share a State value owned exclusively by the single
// executor goroutine driving the job; no synchronization is needed inside.
package pipeline

import (
	"context"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// ReportFunc lets a stage surface incremental progress labels without
// knowing about the job store or the event hub.
type ReportFunc func(label string)

// Stage is one unit of pipeline work. Run reads its inputs from st, writes
// its outputs back into st, and returns a classified error on failure.
// Stages must be safe to retry: a retried call may not assume side effects
// of a prior attempt outside the state it controls.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *State, report ReportFunc) error
}

// Song is a curated artist/title pair before platform resolution.
type Song struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// StageMetric records per-stage timing and retry counts, carried into the
// final result's generation metrics.
type StageMetric struct {
	Stage    string        `json:"stage"`
	Elapsed  time.Duration `json:"elapsed"`
	Attempts int           `json:"attempts"`
}

// State is the value threaded through the stages of one job.
type State struct {
	Request    model.PlaylistRequest
	Context    string   // interpreted musical direction
	Candidates []string // accumulated research notes
	Songs      []Song   // curated artist/title list
	Title      string   // playlist title
	Result     *model.PlaylistResult
	Metrics    []StageMetric
}
