package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown job, schedule, or template id.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a schedule or template name collision
	// for the same owner.
	ErrDuplicateName = errors.New("name already in use")

	// ErrNotAvailable indicates a download request against a job that has
	// not completed.
	ErrNotAvailable = errors.New("artifact not available")

	// ErrStaleClaim indicates a lost race to claim a due schedule.
	// Not an error condition; the winner proceeds and the loser no-ops.
	ErrStaleClaim = errors.New("schedule already claimed")

	// ErrTerminalTransitionDenied is returned when a status update would
	// leave a terminal state (completed/failed/cancelled).
	ErrTerminalTransitionDenied = errors.New("job already in terminal state")
)

// ValidationError rejects a malformed request before any record is created.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error codes recorded on failed jobs.
const (
	ErrCodeQuery     = "query_failed"
	ErrCodeSerialize = "serialize_failed"
	ErrCodeArtifact  = "artifact_write_failed"
	ErrCodeStuck     = "stuck_timeout"
)

// ExecError is the structured failure recorded on a failed job. Execution
// errors are never propagated to the submitter; the status interface
// surfaces them.
type ExecError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
