package queuedb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type State = string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// States lists every job state in lifecycle order.
var States = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

type Job struct {
	bun.BaseModel `bun:"table:jobs" json:"-"`

	ID         string  `bun:"id,pk" json:"id"`
	Command    string  `bun:"command,notnull" json:"command"`
	Queue      string  `bun:"queue,notnull" json:"queue"`
	State      State   `bun:"state,notnull" json:"state"`
	Attempts   int     `bun:"attempts,notnull" json:"attempts"`
	MaxRetries int     `bun:"max_retries,notnull" json:"max_retries"`
	Priority   int     `bun:"priority,notnull" json:"priority"`
	RunAt      int64   `bun:"run_at,notnull" json:"run_at"`
	RunAfter   *int64  `bun:"run_after" json:"run_after,omitempty"`
	TimeoutSec *int    `bun:"timeout_sec" json:"timeout_sec,omitempty"`
	LockedBy   *string `bun:"locked_by" json:"locked_by,omitempty"`
	LastError  *string `bun:"last_error" json:"last_error,omitempty"`
	Output     *string `bun:"output" json:"output,omitempty"`
	// CreatedAt and UpdatedAt are unix milliseconds.
	CreatedAt int64 `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt int64 `bun:"updated_at,notnull" json:"updated_at"`
}

func (j *Job) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now().UnixMilli()
		if j.CreatedAt == 0 {
			j.CreatedAt = now
		}
		if j.UpdatedAt == 0 {
			j.UpdatedAt = j.CreatedAt
		}
	}
	return nil
}

// JobLog is one execution attempt's captured output. Rows are never updated.
type JobLog struct {
	bun.BaseModel `bun:"table:job_logs" json:"-"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	JobID     string `bun:"job_id,notnull" json:"job_id"`
	Attempt   int    `bun:"attempt,notnull" json:"attempt"`
	Timestamp int64  `bun:"timestamp,notnull" json:"timestamp"`
	Stdout    string `bun:"stdout,notnull" json:"stdout"`
	Stderr    string `bun:"stderr,notnull" json:"stderr"`
}

type QueueDepth struct {
	Queue string `bun:"queue" json:"queue"`
	State State  `bun:"state" json:"state"`
	Count int    `bun:"count" json:"count"`
}

type ListFilter struct {
	State State
	Queue string
	Limit int
}
