package queuectl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TimKotowski/queuectl/internal/queuedb"
)

type (
	Job        = queuedb.Job
	JobLog     = queuedb.JobLog
	State      = queuedb.State
	QueueDepth = queuedb.QueueDepth
)

const (
	StatePending    = queuedb.StatePending
	StateProcessing = queuedb.StateProcessing
	StateCompleted  = queuedb.StateCompleted
	StateFailed     = queuedb.StateFailed
	StateDead       = queuedb.StateDead
)

// EnqueueRequest describes a job to add. Nil fields take the queue defaults.
type EnqueueRequest struct {
	ID         string `json:"id,omitempty"`
	Command    string `json:"command"`
	Queue      string `json:"queue,omitempty"`
	Priority   *int   `json:"priority,omitempty"`
	MaxRetries *int   `json:"max_retries,omitempty"`
	TimeoutSec *int   `json:"timeout_sec,omitempty"`
	// RunAt is epoch seconds. Nil means immediately eligible.
	RunAt *int64 `json:"run_at,omitempty"`
}

func (r EnqueueRequest) validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return &ValidationError{Field: "command", Reason: "must not be empty"}
	}

	if r.ID != "" && strings.TrimSpace(r.ID) != r.ID {
		return &ValidationError{Field: "id", Reason: "must not have surrounding whitespace"}
	}

	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "must not be negative"}
	}

	if r.TimeoutSec != nil && *r.TimeoutSec <= 0 {
		return &ValidationError{Field: "timeout_sec", Reason: "must be positive"}
	}

	if r.RunAt != nil && *r.RunAt < 0 {
		return &ValidationError{Field: "run_at", Reason: "must not be negative"}
	}

	return nil
}

// InputKind tags what an enqueue payload holds. Callers pick it explicitly.
type InputKind int

const (
	// InputRaw treats the payload as the command line itself.
	InputRaw InputKind = iota
	// InputDescriptor treats the payload as a JSON EnqueueRequest.
	InputDescriptor
)

func (k InputKind) String() string {
	switch k {
	case InputRaw:
		return "raw"
	case InputDescriptor:
		return "descriptor"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// ParseEnqueueInput builds a request from payload. Raw payloads become the
// command of base. Descriptors are decoded strictly and fields they leave
// unset are taken from base.
func ParseEnqueueInput(kind InputKind, payload string, base EnqueueRequest) (EnqueueRequest, error) {
	switch kind {
	case InputRaw:
		base.Command = payload
		return base, nil
	case InputDescriptor:
		var req EnqueueRequest
		dec := json.NewDecoder(strings.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return EnqueueRequest{}, &ValidationError{Field: "descriptor", Reason: err.Error()}
		}
		if dec.More() {
			return EnqueueRequest{}, &ValidationError{Field: "descriptor", Reason: "trailing data after JSON object"}
		}

		return req.withDefaults(base), nil
	default:
		return EnqueueRequest{}, &ValidationError{Field: "input", Reason: fmt.Sprintf("unknown input kind %s", kind)}
	}
}

// withDefaults fills fields the descriptor left unset from base.
func (r EnqueueRequest) withDefaults(base EnqueueRequest) EnqueueRequest {
	if r.ID == "" {
		r.ID = base.ID
	}
	if r.Queue == "" {
		r.Queue = base.Queue
	}
	if r.Priority == nil {
		r.Priority = base.Priority
	}
	if r.MaxRetries == nil {
		r.MaxRetries = base.MaxRetries
	}
	if r.TimeoutSec == nil {
		r.TimeoutSec = base.TimeoutSec
	}
	if r.RunAt == nil {
		r.RunAt = base.RunAt
	}
	return r
}
