package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Status identifies a task lifecycle event delivered to observers.
type Status int

const (
	StatusProgress Status = iota
	StatusSuccess
	StatusFailure
	StatusPause
	StatusResume
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusProgress:
		return "progress"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusPause:
		return "pause"
	case StatusResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Code is a backend status code. The vocabulary is open-ended: backends may
// report codes this package does not know about, so consumers must treat
// CodeUnknown as the catch-all rather than assume the set is exhaustive.
type Code int

const (
	CodeUnknown Code = iota
	CodeObjectNotFound
	CodeBucketNotFound
	CodeProjectNotFound
	CodeQuotaExceeded
	CodeUnauthenticated
	CodeUnauthorized
	CodeRetryLimitExceeded
	CodeNonMatchingChecksum
	CodeDownloadSizeExceeded
	CodeCancelled
	CodeInvalidArgument
)

// String returns a human-readable code name.
func (c Code) String() string {
	switch c {
	case CodeObjectNotFound:
		return "object_not_found"
	case CodeBucketNotFound:
		return "bucket_not_found"
	case CodeProjectNotFound:
		return "project_not_found"
	case CodeQuotaExceeded:
		return "quota_exceeded"
	case CodeUnauthenticated:
		return "unauthenticated"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeRetryLimitExceeded:
		return "retry_limit_exceeded"
	case CodeNonMatchingChecksum:
		return "non_matching_checksum"
	case CodeDownloadSizeExceeded:
		return "download_size_exceeded"
	case CodeCancelled:
		return "cancelled"
	case CodeInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is a backend failure carrying the status code that caused it.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a backend error with the given code.
func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the backend status code from an error. It is total:
// errors that carry no code map to CodeUnknown.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// Handler receives a point-in-time snapshot of a task.
type Handler func(Snapshot)

// Snapshot is a point-in-time view of a task's progress, error, and target.
type Snapshot interface {
	// Progress returns transferred and total byte counts. A negative total
	// means the total is not known.
	Progress() (completed, total int64)

	// Err returns the failure associated with this snapshot, or nil.
	Err() error

	// Reference returns the remote object the task operates on.
	Reference() Reference
}

// Task is a handle to an in-flight backend operation. Terminal statuses
// (success, failure) fire a registered handler at most once; a handler
// registered after its terminal status already fired is invoked immediately.
type Task interface {
	Pause()
	Resume()
	Cancel()
	Observe(status Status, fn Handler)
}

// Reference identifies a remote object and exposes the operations that can
// be started against it.
type Reference interface {
	// Name returns the last path segment, suitable for display.
	Name() string

	// Path returns the fully-qualified remote path.
	Path() string

	// Put starts an upload of raw bytes and returns the task handle.
	Put(data []byte) Task

	// WriteToFile starts a download to the given local path and returns
	// the task handle.
	WriteToFile(path string) Task

	// Delete removes the remote object, invoking fn exactly once.
	Delete(fn func(error))

	// DownloadURL resolves a shareable link for the object, invoking fn
	// exactly once with either the URL or an error.
	DownloadURL(fn func(string, error))
}

// Backend resolves remote paths into References.
type Backend interface {
	Ref(path string) Reference
	Close() error
}

// baseName returns the last segment of a slash-separated remote path.
func baseName(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
