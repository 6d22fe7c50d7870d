// Package api exposes the HTTP submission, status, and download surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/export"
	"github.com/recordly/exportd/internal/recurrence"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

type Store interface {
	CreateJob(ctx context.Context, job domain.Job) error
	GetJobByPublicID(ctx context.Context, publicID string) (domain.Job, error)
	ListOneOffJobs(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Job, error)
	CancelJob(ctx context.Context, jobID uuid.UUID, cancelledAt time.Time) error
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
	TouchDownload(ctx context.Context, jobID uuid.UUID, at time.Time) error

	CreateSchedule(ctx context.Context, sched domain.Schedule) error
	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (domain.Schedule, error)
	ListSchedules(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Schedule, error)
	ListScheduleJobs(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]domain.Job, error)
	SetScheduleActive(ctx context.Context, scheduleID uuid.UUID, active bool, nextRunAt *time.Time, at time.Time) error
	DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error

	CreateTemplate(ctx context.Context, tpl domain.Template) error
	GetTemplate(ctx context.Context, templateID uuid.UUID) (domain.Template, error)
	ListTemplates(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, templateID uuid.UUID) error
	IncrementTemplateUsage(ctx context.Context, templateID uuid.UUID) error
}

// ArtifactStore streams and removes stored artifacts.
type ArtifactStore interface {
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.JobRequest) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store     Store
	ownerID   uuid.UUID // single-tenant for now
	artifacts ArtifactStore
	bus       Enqueuer      // optional; nil means the janitor picks jobs up
	db        HealthChecker // optional
	clock     func() time.Time
}

func NewHandler(store Store, artifacts ArtifactStore, ownerID uuid.UUID) *Handler {
	return &Handler{
		store:     store,
		artifacts: artifacts,
		ownerID:   ownerID,
		clock:     time.Now,
	}
}

// WithBus wires job submission to the runner pool's request channel.
func (h *Handler) WithBus(bus Enqueuer) *Handler {
	h.bus = bus
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case parts[0] == "exports":
		h.routeExports(w, r, parts)

	case parts[0] == "schedules":
		h.routeSchedules(w, r, parts)

	case parts[0] == "templates":
		h.routeTemplates(w, r, parts)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeExports(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createExport(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listExports(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getExport(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteExport(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "download" && r.Method == http.MethodGet:
		h.downloadExport(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "cancel" && r.Method == http.MethodPost:
		h.cancelExport(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeSchedules(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createSchedule(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listSchedules(w, r)
	case len(parts) == 3 && parts[1] == "bulk" && r.Method == http.MethodPost:
		h.bulkSchedules(w, r, parts[2])
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getSchedule(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteSchedule(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "jobs" && r.Method == http.MethodGet:
		h.listScheduleJobs(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeTemplates(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createTemplate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listTemplates(w, r)
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteTemplate(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// --- exports ---

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req CreateExportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateExport(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields, format, templateID, err := h.resolveExportSpec(r.Context(), req.TemplateID, req.Fields, req.Format)
	if err != nil {
		h.writeStoreError(w, err, "resolve template")
		return
	}

	now := h.clock().UTC()
	job := domain.Job{
		ID:               uuid.New(),
		PublicID:         domain.NewPublicID(),
		OwnerID:          h.ownerID,
		Format:           format,
		Fields:           fields,
		FilterSpec:       req.FilterSpec,
		SortSpec:         req.SortSpec,
		RelatedInclusion: req.RelatedInclusion,
		Status:           domain.JobStatusPending,
		TemplateID:       templateID,
		CreatedAt:        now,
	}

	if err := h.store.CreateJob(r.Context(), job); err != nil {
		log.Printf("api: create export error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create export")
		return
	}

	if templateID != nil {
		if err := h.store.IncrementTemplateUsage(r.Context(), *templateID); err != nil {
			log.Printf("api: template %s usage counter: %v", templateID, err)
		}
	}

	if h.bus != nil {
		req := domain.JobRequest{JobID: job.ID, EnqueuedAt: now}
		if err := h.bus.Enqueue(r.Context(), req); err != nil {
			// The pending row survives; the janitor re-enqueues it.
			log.Printf("api: enqueue job=%s failed, stays pending: %v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, jobResponse(job))
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.store.ListOneOffJobs(r.Context(), h.ownerID, limit, offset)
	if err != nil {
		log.Printf("api: list exports error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request, publicID string) {
	job, err := h.store.GetJobByPublicID(r.Context(), publicID)
	if err != nil {
		h.writeStoreError(w, err, "get export")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request, publicID string) {
	job, err := h.store.GetJobByPublicID(r.Context(), publicID)
	if err != nil {
		h.writeStoreError(w, err, "download export")
		return
	}

	if job.Status != domain.JobStatusCompleted || job.Artifact == nil {
		writeError(w, http.StatusConflict, domain.ErrNotAvailable.Error())
		return
	}

	serializer, err := export.ForFormat(job.Format)
	if err != nil {
		log.Printf("api: download job=%s: %v", job.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to stream artifact")
		return
	}

	f, err := h.artifacts.Open(job.Artifact.Path)
	if err != nil {
		log.Printf("api: download job=%s open artifact: %v", job.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to stream artifact")
		return
	}
	defer f.Close()

	// Monotonic by construction: the store only advances the timestamp.
	if err := h.store.TouchDownload(r.Context(), job.ID, h.clock().UTC()); err != nil {
		log.Printf("api: download job=%s touch: %v", job.ID, err)
	}

	w.Header().Set("Content-Type", serializer.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.PublicID+"."+serializer.FileExtension()+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(job.Artifact.ByteSize, 10))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("api: download job=%s stream: %v", job.ID, err)
	}
}

func (h *Handler) cancelExport(w http.ResponseWriter, r *http.Request, publicID string) {
	job, err := h.store.GetJobByPublicID(r.Context(), publicID)
	if err != nil {
		h.writeStoreError(w, err, "cancel export")
		return
	}

	if err := h.store.CancelJob(r.Context(), job.ID, h.clock().UTC()); err != nil {
		h.writeStoreError(w, err, "cancel export")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteExport(w http.ResponseWriter, r *http.Request, publicID string) {
	job, err := h.store.GetJobByPublicID(r.Context(), publicID)
	if err != nil {
		h.writeStoreError(w, err, "delete export")
		return
	}

	// Artifact first, record second: a crash in between is retried safely,
	// the other order leaves a record pointing at nothing.
	if job.Artifact != nil {
		if err := h.artifacts.Remove(job.Artifact.Path); err != nil {
			log.Printf("api: delete job=%s artifact: %v", job.ID, err)
			writeError(w, http.StatusInternalServerError, "failed to delete export")
			return
		}
	}

	if err := h.store.DeleteJob(r.Context(), job.ID); err != nil {
		h.writeStoreError(w, err, "delete export")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- schedules ---

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateSchedule(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields, format, templateID, err := h.resolveExportSpec(r.Context(), req.TemplateID, req.Fields, req.Format)
	if err != nil {
		h.writeStoreError(w, err, "resolve template")
		return
	}

	retention := domain.RetentionPolicy{}
	if req.Retention != nil {
		retention = domain.RetentionPolicy{KeepCount: req.Retention.KeepCount, KeepDays: req.Retention.KeepDays}
	}

	now := h.clock().UTC()
	sched := domain.Schedule{
		ID:               uuid.New(),
		OwnerID:          h.ownerID,
		Name:             req.Name,
		Description:      req.Description,
		Format:           format,
		Fields:           fields,
		FilterSpec:       req.FilterSpec,
		SortSpec:         req.SortSpec,
		RelatedInclusion: req.RelatedInclusion,
		Frequency:        domain.Frequency(req.Frequency),
		CustomExpr:       req.CustomExpr,
		Retention:        retention,
		TemplateID:       templateID,
		IsActive:         true,
		NextRunAt:        recurrence.Next(domain.Frequency(req.Frequency), req.CustomExpr, now),
		CreatedAt:        now,
	}

	if err := h.store.CreateSchedule(r.Context(), sched); err != nil {
		h.writeStoreError(w, err, "create schedule")
		return
	}

	if templateID != nil {
		if err := h.store.IncrementTemplateUsage(r.Context(), *templateID); err != nil {
			log.Printf("api: template %s usage counter: %v", templateID, err)
		}
	}

	writeJSON(w, http.StatusCreated, scheduleResponse(sched))
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedules, err := h.store.ListSchedules(r.Context(), h.ownerID, limit, offset)
	if err != nil {
		log.Printf("api: list schedules error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}

	resp := ListSchedulesResponse{Schedules: make([]ScheduleResponse, len(schedules))}
	for i, sched := range schedules {
		resp.Schedules[i] = scheduleResponse(sched)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request, rawID string) {
	scheduleID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	sched, err := h.store.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.writeStoreError(w, err, "get schedule")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse(sched))
}

func (h *Handler) listScheduleJobs(w http.ResponseWriter, r *http.Request, rawID string) {
	scheduleID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.store.ListScheduleJobs(r.Context(), scheduleID, limit, offset)
	if err != nil {
		log.Printf("api: list schedule jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteSchedule removes the definition only. Produced jobs stay until
// retention or explicit deletion removes them.
func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request, rawID string) {
	scheduleID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	if err := h.store.DeleteSchedule(r.Context(), scheduleID); err != nil {
		h.writeStoreError(w, err, "delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkSchedules(w http.ResponseWriter, r *http.Request, action string) {
	if action != "activate" && action != "deactivate" && action != "delete" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var req BulkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	now := h.clock().UTC()
	resp := BulkResponse{Results: make([]BulkItemResult, len(req.IDs))}
	for i, rawID := range req.IDs {
		resp.Results[i] = h.bulkScheduleItem(r.Context(), action, rawID, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) bulkScheduleItem(ctx context.Context, action, rawID string, now time.Time) BulkItemResult {
	result := BulkItemResult{ID: rawID}

	scheduleID, err := uuid.Parse(rawID)
	if err != nil {
		result.Error = "invalid schedule id"
		return result
	}

	switch action {
	case "activate":
		// Reactivation recomputes next_run_at so a long-dormant schedule
		// does not fire immediately for every missed instant.
		sched, gerr := h.store.GetSchedule(ctx, scheduleID)
		if gerr != nil {
			err = gerr
			break
		}
		next := recurrence.Next(sched.Frequency, sched.CustomExpr, now)
		err = h.store.SetScheduleActive(ctx, scheduleID, true, &next, now)
	case "deactivate":
		err = h.store.SetScheduleActive(ctx, scheduleID, false, nil, now)
	case "delete":
		err = h.store.DeleteSchedule(ctx, scheduleID)
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

// --- templates ---

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateTemplate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.clock().UTC()
	tpl := domain.Template{
		ID:         uuid.New(),
		OwnerID:    h.ownerID,
		Name:       req.Name,
		Format:     domain.Format(req.Format),
		Fields:     toFieldSpecs(req.Fields),
		FilterSpec: req.FilterSpec,
		SortSpec:   req.SortSpec,
		IsDefault:  req.IsDefault,
		IsPublic:   req.IsPublic,
		CreatedAt:  now,
	}

	if err := h.store.CreateTemplate(r.Context(), tpl); err != nil {
		h.writeStoreError(w, err, "create template")
		return
	}
	writeJSON(w, http.StatusCreated, templateResponse(tpl))
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	templates, err := h.store.ListTemplates(r.Context(), h.ownerID, limit, offset)
	if err != nil {
		log.Printf("api: list templates error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	resp := ListTemplatesResponse{Templates: make([]TemplateResponse, len(templates))}
	for i, tpl := range templates {
		resp.Templates[i] = templateResponse(tpl)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request, rawID string) {
	templateID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := h.store.DeleteTemplate(r.Context(), templateID); err != nil {
		h.writeStoreError(w, err, "delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

// resolveExportSpec returns the effective fields, format, and template
// reference for a submission. Template fields and format are copied at
// creation time; a later template edit never changes an existing job or
// schedule.
func (h *Handler) resolveExportSpec(ctx context.Context, rawTemplateID string, fields []FieldRequest, format string) ([]domain.FieldSpec, domain.Format, *uuid.UUID, error) {
	if rawTemplateID == "" {
		return toFieldSpecs(fields), domain.Format(format), nil, nil
	}

	templateID, err := uuid.Parse(rawTemplateID)
	if err != nil {
		return nil, "", nil, domain.ValidationError{Field: "template_id", Message: "invalid uuid"}
	}

	tpl, err := h.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, "", nil, err
	}

	resolved := toFieldSpecs(fields)
	if len(resolved) == 0 {
		resolved = tpl.Fields
	}
	resolvedFormat := domain.Format(format)
	if resolvedFormat == "" {
		resolvedFormat = tpl.Format
	}
	return resolved, resolvedFormat, &templateID, nil
}

func toFieldSpecs(fields []FieldRequest) []domain.FieldSpec {
	if len(fields) == 0 {
		return nil
	}
	specs := make([]domain.FieldSpec, len(fields))
	for i, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		specs[i] = domain.FieldSpec{Name: f.Name, Label: label}
	}
	return specs
}

// decodeBody decodes a JSON request body with the size cap applied. Writes
// the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, op string) {
	var validationErr domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDuplicateName):
		writeError(w, http.StatusConflict, domain.ErrDuplicateName.Error())
	case errors.Is(err, domain.ErrTerminalTransitionDenied):
		writeError(w, http.StatusConflict, domain.ErrTerminalTransitionDenied.Error())
	case errors.Is(err, domain.ErrNotAvailable):
		writeError(w, http.StatusConflict, domain.ErrNotAvailable.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
