package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
	FormatJSON  Format = "json"
)

// FieldSpec selects one record field for export under a display label.
type FieldSpec struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Artifact references the produced output file. Non-nil iff the job completed.
type Artifact struct {
	Path     string `json:"path"`
	ByteSize int64  `json:"byte_size"`
}

// Job is one concrete export attempt, one-off or schedule-triggered.
type Job struct {
	ID       uuid.UUID
	PublicID string // opaque shareable token, distinct from the primary key
	OwnerID  uuid.UUID

	Format           Format
	Fields           []FieldSpec
	FilterSpec       []byte // opaque, passed through to the record provider
	SortSpec         string
	RelatedInclusion []string

	Status JobStatus

	ScheduleID *uuid.UUID // nil for one-off jobs
	TemplateID *uuid.UUID

	Artifact *Artifact
	Error    *ExecError

	TotalRecords int
	DurationMs   int64
	Retries      int

	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	LastDownloadedAt *time.Time
}
