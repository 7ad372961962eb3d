package domain

import "time"

type EventKind string

const (
	EventStarted EventKind = "started"
	EventExited  EventKind = "exited"
	EventStopped EventKind = "stopped"
	EventFailed  EventKind = "failed"
)

// ProcessEvent is one persisted lifecycle transition of a supervised
// process. Output bytes are never part of an event; they live only in the
// in-memory buffers.
type ProcessEvent struct {
	ID         int64     `db:"id"`
	ProcessID  string    `db:"process_id"`
	Generation int       `db:"generation"`
	Kind       EventKind `db:"kind"`
	PID        *int      `db:"pid"`
	ExitCode   *int      `db:"exit_code"`
	Detail     *string   `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}

func NewProcessEvent(processID string, generation int, kind EventKind) *ProcessEvent {
	return &ProcessEvent{
		ProcessID:  processID,
		Generation: generation,
		Kind:       kind,
		CreatedAt:  time.Now(),
	}
}

func (e *ProcessEvent) WithPID(pid int) *ProcessEvent {
	e.PID = &pid
	return e
}

func (e *ProcessEvent) WithExitCode(code int) *ProcessEvent {
	e.ExitCode = &code
	return e
}

func (e *ProcessEvent) WithDetail(detail string) *ProcessEvent {
	if detail != "" {
		e.Detail = &detail
	}
	return e
}
