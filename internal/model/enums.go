package model

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Error kinds
type ErrorKind string

const (
	ErrKindInvalidRequest ErrorKind = "invalid_request"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindTransient      ErrorKind = "transient"
	ErrKindPermanent      ErrorKind = "permanent"
	ErrKindCancelled      ErrorKind = "cancelled"
)

// Retryable reports whether a failure of this kind may be retried within a stage.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindTransient
}
