package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a stored record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateJob is returned by JobStore.Insert on a uniqueness violation.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrLogFinalized is returned when a terminal log entry is updated again.
	ErrLogFinalized = errors.New("log entry already finalized")
	// ErrNotReviewable is returned when publishing a log that is not awaiting review.
	ErrNotReviewable = errors.New("log entry is not awaiting review")
	// ErrInvalidTemplate is returned when a template fails validation.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrRunInProgress is returned when a scheduled run overlaps an active one.
	ErrRunInProgress = errors.New("run already in progress")
)

// MalformedURLError reports input that is not an absolute http(s) URL.
type MalformedURLError struct {
	URL    string
	Reason string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed url %q: %s", e.URL, e.Reason)
}

// FetchError reports a failed page retrieval. StatusCode is zero for
// network-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError reports that a canonical job could not be stored.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
