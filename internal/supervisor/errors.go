package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for any operation referencing an unknown
	// process id.
	ErrNotFound = errors.New("process not found")

	// ErrAlreadyExists is returned when registering a process under an id
	// that is already taken.
	ErrAlreadyExists = errors.New("process already exists")

	// ErrAlreadyRunning is returned by Start when the current generation
	// is still alive.
	ErrAlreadyRunning = errors.New("process already running")

	// ErrNotRunning is returned by SendInput when the process is not
	// running.
	ErrNotRunning = errors.New("process not running")

	// ErrStillRunning is returned by Remove while the process is alive.
	ErrStillRunning = errors.New("process still running")

	// ErrTruncated is returned by ReadOutput when the requested position
	// precedes the oldest retained output.
	ErrTruncated = errors.New("requested output has been evicted")

	// ErrInvalidID is returned when a process id does not match the
	// allowed pattern.
	ErrInvalidID = errors.New("invalid process id")
)

// KillError reports a failure to deliver a termination signal to the
// process. It does not mean the process survived a successful signal.
type KillError struct {
	Signal string
	Err    error
}

func (e *KillError) Error() string {
	return fmt.Sprintf("failed to deliver %s: %v", e.Signal, e.Err)
}

func (e *KillError) Unwrap() error {
	return e.Err
}
