package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobRequest is handed from the scheduler (or submission) to the runner pool
// when a pending job is ready to execute. The durable job row is the source
// of truth; the request only carries the handle.
type JobRequest struct {
	JobID      uuid.UUID
	ScheduleID *uuid.UUID

	EnqueuedAt time.Time
}
