// Package audit records the outcome of every device change attempt.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event represents an auditable per-device outcome
type Event struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Role      string        `json:"role,omitempty"`
	Operation string        `json:"operation"`
	ChangeSet string        `json:"changeset,omitempty"`
	Result    string        `json:"result"`
	Diff      string        `json:"diff,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Operation names recorded in events.
const (
	OpBackup          = "backup"
	OpCommit          = "commit"
	OpRollbackRestore = "rollback-restore"
	OpRollbackMerge   = "rollback-merge"
	OpVerify          = "verify"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	RunID       string
	Result      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, runID, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRole sets the device role
func (e *Event) WithRole(role string) *Event {
	e.Role = role
	return e
}

// WithChangeSet records where the applied lines came from
func (e *Event) WithChangeSet(source string) *Event {
	e.ChangeSet = source
	return e
}

// WithResult sets the outcome name and diff shown to the approver
func (e *Event) WithResult(result, diff string) *Event {
	e.Result = result
	e.Diff = diff
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(kind string, err error) *Event {
	e.Success = false
	e.ErrorKind = kind
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
