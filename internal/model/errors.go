package model

import (
	"context"
	"errors"
	"fmt"
)

// ClassifiedError tags an underlying error with a failure kind so the
// pipeline executor can decide between retrying and aborting.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as retryable (network timeout, rate limit).
func Transient(err error) error {
	return &ClassifiedError{Kind: ErrKindTransient, Err: err}
}

// Permanent wraps an error as immediately fatal (authorization failure,
// malformed upstream response).
func Permanent(err error) error {
	return &ClassifiedError{Kind: ErrKindPermanent, Err: err}
}

// Cancelled wraps an error as a cooperative cancellation outcome.
func Cancelled(err error) error {
	return &ClassifiedError{Kind: ErrKindCancelled, Err: err}
}

// InvalidRequest wraps a caller error, surfaced synchronously from submit.
func InvalidRequest(err error) error {
	return &ClassifiedError{Kind: ErrKindInvalidRequest, Err: err}
}

// KindOf classifies an arbitrary error. Deadline overruns count as
// transient, context cancellation as cancelled, and anything unclassified
// defaults to transient so flaky upstreams get their retry budget.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTransient
	}
	return ErrKindTransient
}
