package domain

import (
	"regexp"
	"time"
)

type ProcessState string

const (
	ProcessStatePending ProcessState = "pending"
	ProcessStateRunning ProcessState = "running"
	ProcessStateExited  ProcessState = "exited"
	ProcessStateFailed  ProcessState = "failed"
	ProcessStateStopped ProcessState = "stopped"
)

// Terminal reports whether no further transitions happen within the current
// generation. A restart opens a new generation with a fresh state machine.
func (s ProcessState) Terminal() bool {
	return s == ProcessStateExited || s == ProcessStateFailed || s == ProcessStateStopped
}

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

var processIDPattern = regexp.MustCompile(`^[\w-]+$`)

// ValidProcessID reports whether id is usable as a process identifier.
func ValidProcessID(id string) bool {
	return processIDPattern.MatchString(id)
}

// ProcessSpec is the immutable launch description of a supervised process.
type ProcessSpec struct {
	ID      string   `json:"id"`
	Command []string `json:"command"`
	Dir     string   `json:"dir,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// ProcessStatus is a point-in-time snapshot of one supervised process.
// PID and ExitCode are nil when the process has never run or is still
// running, respectively.
type ProcessStatus struct {
	ID         string       `json:"id"`
	Command    []string     `json:"command"`
	State      ProcessState `json:"state"`
	PID        *int         `json:"pid,omitempty"`
	ExitCode   *int         `json:"exit_code,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Generation int          `json:"generation"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	EndedAt    *time.Time   `json:"ended_at,omitempty"`
}

// Chunk is one captured line of process output. Seq is assigned per stream
// per generation, starting at 1. Line retains the trailing newline as
// produced by the process; the last line before stream close may lack one.
type Chunk struct {
	Stream Stream    `json:"stream"`
	Seq    uint64    `json:"seq"`
	Line   string    `json:"line"`
	Time   time.Time `json:"time"`
}
