package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// The pipeline classifies every failure into one of three buckets: fatal for
// the whole run, permanent for the item, or transient (retryable). Adapters
// wrap their errors with Transient/Permanent so the state machine can branch
// without knowing backend specifics.

// ErrStateStoreUnavailable marks checkpoint store connectivity loss. The run
// must abort: proceeding without durable progress risks unbounded reprocessing.
var ErrStateStoreUnavailable = errors.New("state store unavailable")

// ErrUnsupportedMedia marks a downloaded asset that is not an allowed image
// format or exceeds the size ceiling. Never retried.
var ErrUnsupportedMedia = errors.New("unsupported media")

// TransientError wraps a failure worth retrying (throttling, timeouts,
// connection resets).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that will never succeed on retry (rejected
// input, unsupported media).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable. Returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is classified as retryable. Unclassified
// errors default to transient so that network hiccups from adapters that
// forgot to wrap still get the retry policy rather than a permanent skip.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsPermanent(err)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return true
	}
	return errors.Is(err, ErrUnsupportedMedia)
}

// isAbandoned reports whether the run context is cancelled or past its
// deadline, meaning the item records no terminal state at all. Only the run
// context counts: a DeadlineExceeded from an expired per-call timeout is an
// ordinary transient failure and stays on the retry path.
func isAbandoned(ctx context.Context) bool {
	return ctx.Err() != nil
}

// errClass names the failure class for logs.
func errClass(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "transient"
}

// stageError annotates an error with the stage it occurred in.
func stageError(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}
