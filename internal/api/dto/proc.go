package dto

import "time"

// CreateProcRequest registers a new supervised process
type CreateProcRequest struct {
	ID      string   `json:"id" binding:"required"`
	Command []string `json:"command" binding:"required,min=1"`
	Dir     string   `json:"dir"`
	Env     []string `json:"env"`
}

// ProcResponse represents one supervised process
type ProcResponse struct {
	ID         string     `json:"id"`
	Command    []string   `json:"command"`
	State      string     `json:"state"`
	PID        *int       `json:"pid,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Generation int        `json:"generation"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// ProcListResponse represents all supervised processes
type ProcListResponse struct {
	Items []ProcResponse `json:"items"`
}

// WriteInputRequest carries one line of stdin input
type WriteInputRequest struct {
	Line string `json:"line" binding:"required"`
}

// ChunkResponse is one captured line of output
type ChunkResponse struct {
	Stream string    `json:"stream"`
	Seq    uint64    `json:"seq"`
	Line   string    `json:"line"`
	Time   time.Time `json:"time"`
}

// OutputResponse is the resumable poll result for one stream. Floor is the
// highest evicted sequence; repeat the poll with since >= floor to resume
// without gaps.
type OutputResponse struct {
	Chunks []ChunkResponse `json:"chunks"`
	Floor  uint64          `json:"floor"`
}

// TailResponse is the merged last-n-lines view
type TailResponse struct {
	Lines []ChunkResponse `json:"lines"`
}

// EventResponse is one persisted lifecycle event
type EventResponse struct {
	ID         int64     `json:"id"`
	ProcessID  string    `json:"process_id"`
	Generation int       `json:"generation"`
	Kind       string    `json:"kind"`
	PID        *int      `json:"pid,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Detail     *string   `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventListResponse represents the audit trail of one process
type EventListResponse struct {
	Items []EventResponse `json:"items"`
}
