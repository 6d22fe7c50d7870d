package api

import (
	"encoding/json"
	"time"

	"github.com/recordly/exportd/internal/domain"
)

type FieldRequest struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

type CreateExportRequest struct {
	Format           string          `json:"format"`
	Fields           []FieldRequest  `json:"fields,omitempty"`
	TemplateID       string          `json:"template_id,omitempty"` // fields inherited when set and fields omitted
	FilterSpec       json.RawMessage `json:"filter_spec,omitempty"`
	SortSpec         string          `json:"sort_spec,omitempty"`
	RelatedInclusion []string        `json:"related_inclusion,omitempty"`
}

type RetentionRequest struct {
	KeepCount int `json:"keep_count"`
	KeepDays  int `json:"keep_days"`
}

type CreateScheduleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Format           string          `json:"format"`
	Fields           []FieldRequest  `json:"fields,omitempty"`
	TemplateID       string          `json:"template_id,omitempty"`
	FilterSpec       json.RawMessage `json:"filter_spec,omitempty"`
	SortSpec         string          `json:"sort_spec,omitempty"`
	RelatedInclusion []string        `json:"related_inclusion,omitempty"`

	Frequency  string            `json:"frequency"`
	CustomExpr string            `json:"custom_expr,omitempty"` // required iff frequency == custom
	Retention  *RetentionRequest `json:"retention,omitempty"`
}

type CreateTemplateRequest struct {
	Name       string          `json:"name"`
	Format     string          `json:"format"`
	Fields     []FieldRequest  `json:"fields"`
	FilterSpec json.RawMessage `json:"filter_spec,omitempty"`
	SortSpec   string          `json:"sort_spec,omitempty"`
	IsDefault  bool            `json:"is_default,omitempty"`
	IsPublic   bool            `json:"is_public,omitempty"`
}

type BulkRequest struct {
	IDs []string `json:"ids"`
}

type ArtifactResponse struct {
	ByteSize int64 `json:"byte_size"`
}

type JobResponse struct {
	ID           string            `json:"id"`
	Format       string            `json:"format"`
	Status       string            `json:"status"`
	ScheduleID   string            `json:"schedule_id,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	Artifact     *ArtifactResponse `json:"artifact,omitempty"`
	Error        *domain.ExecError `json:"error,omitempty"`
	TotalRecords int               `json:"total_records"`
	DurationMs   int64             `json:"duration_ms"`
	CreatedAt    string            `json:"created_at"`
	StartedAt    string            `json:"started_at,omitempty"`
	CompletedAt  string            `json:"completed_at,omitempty"`
	DownloadedAt string            `json:"last_downloaded_at,omitempty"`
}

type ScheduleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format"`
	Frequency   string `json:"frequency"`
	CustomExpr  string `json:"custom_expr,omitempty"`
	IsActive    bool   `json:"is_active"`
	NextRunAt   string `json:"next_run_at"`
	LastRunAt   string `json:"last_run_at,omitempty"`

	KeepCount int `json:"keep_count"`
	KeepDays  int `json:"keep_days"`

	RunCount     int    `json:"run_count"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	LastError    string `json:"last_error,omitempty"`

	CreatedAt string `json:"created_at"`
}

type TemplateResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Format     string `json:"format"`
	IsDefault  bool   `json:"is_default"`
	IsPublic   bool   `json:"is_public"`
	UsageCount int    `json:"usage_count"`
	CreatedAt  string `json:"created_at"`
}

// BulkItemResult reports one id's outcome in a bulk operation. Items fail
// independently; there is no rollback across them.
type BulkItemResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type BulkResponse struct {
	Results []BulkItemResult `json:"results"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ListSchedulesResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
}

type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func jobResponse(job domain.Job) JobResponse {
	resp := JobResponse{
		ID:           job.PublicID,
		Format:       string(job.Format),
		Status:       string(job.Status),
		Error:        job.Error,
		TotalRecords: job.TotalRecords,
		DurationMs:   job.DurationMs,
		CreatedAt:    formatTime(job.CreatedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		CompletedAt:  formatTimePtr(job.CompletedAt),
		DownloadedAt: formatTimePtr(job.LastDownloadedAt),
	}
	if job.ScheduleID != nil {
		resp.ScheduleID = job.ScheduleID.String()
	}
	if job.TemplateID != nil {
		resp.TemplateID = job.TemplateID.String()
	}
	if job.Artifact != nil {
		resp.Artifact = &ArtifactResponse{ByteSize: job.Artifact.ByteSize}
	}
	return resp
}

func scheduleResponse(sched domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:           sched.ID.String(),
		Name:         sched.Name,
		Description:  sched.Description,
		Format:       string(sched.Format),
		Frequency:    string(sched.Frequency),
		CustomExpr:   sched.CustomExpr,
		IsActive:     sched.IsActive,
		NextRunAt:    formatTime(sched.NextRunAt),
		LastRunAt:    formatTimePtr(sched.LastRunAt),
		KeepCount:    sched.Retention.KeepCount,
		KeepDays:     sched.Retention.KeepDays,
		RunCount:     sched.RunCount,
		SuccessCount: sched.SuccessCount,
		FailureCount: sched.FailureCount,
		LastError:    sched.LastError,
		CreatedAt:    formatTime(sched.CreatedAt),
	}
}

func templateResponse(tpl domain.Template) TemplateResponse {
	return TemplateResponse{
		ID:         tpl.ID.String(),
		Name:       tpl.Name,
		Format:     string(tpl.Format),
		IsDefault:  tpl.IsDefault,
		IsPublic:   tpl.IsPublic,
		UsageCount: tpl.UsageCount,
		CreatedAt:  formatTime(tpl.CreatedAt),
	}
}
