package model

// Stream event names, shared by the SSE and WebSocket transports.
const (
	EventTypeProgress = "progress"
	EventTypeComplete = "complete"
	EventTypeError    = "error"
	EventTypePing     = "ping"
	EventTypePong     = "pong"
)

// ProgressEvent is the transient snapshot pushed to observers at stage
// boundaries and on the terminal transition. Never stored.
type ProgressEvent struct {
	JobID    string          `json:"jobId"`
	Status   JobStatus       `json:"status"`
	Progress string          `json:"progress,omitempty"`
	Result   *PlaylistResult `json:"result,omitempty"`
	Error    *JobError       `json:"error,omitempty"`
}

// Terminal reports whether this is the last event for the job.
func (e ProgressEvent) Terminal() bool {
	return e.Status.Terminal()
}

// Type maps the event to its stream event name.
func (e ProgressEvent) Type() string {
	switch e.Status {
	case JobStatusCompleted:
		return EventTypeComplete
	case JobStatusFailed:
		return EventTypeError
	default:
		return EventTypeProgress
	}
}

// EventFromJob builds the snapshot event for a job's current state. Late
// stream joiners receive this before live events so no state is missed.
func EventFromJob(job *Job) ProgressEvent {
	return ProgressEvent{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Result:   job.Result,
		Error:    job.Error,
	}
}
