// Package postgres implements the durable job, schedule, and template stores.
//
// All lifecycle coordination is expressed as conditional UPDATEs: the WHERE
// clause carries the expected prior state, and zero affected rows means the
// caller lost a race. No in-process locks are involved, so multiple exportd
// instances can safely share one database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/recordly/exportd/internal/api"
	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/janitor"
	"github.com/recordly/exportd/internal/retention"
	"github.com/recordly/exportd/internal/runner"
	"github.com/recordly/exportd/internal/scheduler"
)

type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- jobs ---

func (s *Store) CreateJob(ctx context.Context, job domain.Job) error {
	fields, err := json.Marshal(job.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertJob,
		job.ID,
		job.PublicID,
		job.OwnerID,
		string(job.Format),
		fields,
		job.FilterSpec,
		job.SortSpec,
		pq.Array(job.RelatedInclusion),
		string(job.Status),
		nullUUID(job.ScheduleID),
		nullUUID(job.TemplateID),
		job.CreatedAt,
	)
	return err
}

func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (domain.Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, queryGetJob, jobID))
}

func (s *Store) GetJobByPublicID(ctx context.Context, publicID string) (domain.Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, queryGetJobByPublicID, publicID))
}

func (s *Store) ListOneOffJobs(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Job, error) {
	return s.queryJobs(ctx, queryListOneOffJobs, ownerID, limit, offset)
}

func (s *Store) ListScheduleJobs(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]domain.Job, error) {
	return s.queryJobs(ctx, queryListScheduleJobs, scheduleID, limit, offset)
}

func (s *Store) GetTerminalJobs(ctx context.Context, scheduleID uuid.UUID) ([]domain.Job, error) {
	return s.queryJobs(ctx, queryGetTerminalJobs, scheduleID)
}

func (s *Store) GetOrphanedPendingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error) {
	return s.queryJobs(ctx, queryGetOrphanedPendingJobs, olderThan, maxResults)
}

func (s *Store) GetStuckProcessingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error) {
	return s.queryJobs(ctx, queryGetStuckProcessingJobs, olderThan, maxResults)
}

// MarkProcessing transitions pending -> processing. The status guard in the
// WHERE clause makes the claim atomic; zero rows means the job is no longer
// pending.
func (s *Store) MarkProcessing(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	return s.conditionalJobUpdate(ctx, jobID, queryMarkProcessing, jobID, startedAt)
}

// CompleteJob transitions processing -> completed with the artifact.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, artifact domain.Artifact, totalRecords int, durationMs int64, completedAt time.Time) error {
	return s.conditionalJobUpdate(ctx, jobID, queryCompleteJob,
		jobID, artifact.Path, artifact.ByteSize, totalRecords, durationMs, completedAt)
}

// FailJob transitions processing -> failed with a structured error.
func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, execErr domain.ExecError, totalRecords int, failedAt time.Time) error {
	return s.conditionalJobUpdate(ctx, jobID, queryFailJob,
		jobID, execErr.Code, execErr.Message, totalRecords, failedAt)
}

// CancelJob transitions pending or processing -> cancelled. A job already in
// a terminal state returns domain.ErrTerminalTransitionDenied, never a silent
// overwrite.
func (s *Store) CancelJob(ctx context.Context, jobID uuid.UUID, cancelledAt time.Time) error {
	return s.conditionalJobUpdate(ctx, jobID, queryCancelJob, jobID, cancelledAt)
}

// TouchDownload advances last_downloaded_at, monotonically and only for
// completed jobs. Losing the monotonicity race is not an error.
func (s *Store) TouchDownload(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, queryTouchDownload, jobID, at)
	return err
}

func (s *Store) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteJob, jobID).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// conditionalJobUpdate runs a status-guarded UPDATE. PostgreSQL acquires the
// row lock before evaluating the WHERE clause, so concurrent terminal writes
// are serialized: exactly one wins, the rest see zero affected rows.
func (s *Store) conditionalJobUpdate(ctx context.Context, jobID uuid.UUID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the job does not exist or its status blocked the update.
		var status string
		err := s.db.QueryRowContext(ctx, queryGetJobStatus, jobID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrTerminalTransitionDenied
	}
	return nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job            domain.Job
		format, status string
		fields         []byte
		scheduleID     uuid.NullUUID
		templateID     uuid.NullUUID
		artifactPath   sql.NullString
		artifactBytes  sql.NullInt64
		errCode        sql.NullString
		errMessage     sql.NullString
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		downloadedAt   sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.PublicID,
		&job.OwnerID,
		&format,
		&fields,
		&job.FilterSpec,
		&job.SortSpec,
		pq.Array(&job.RelatedInclusion),
		&status,
		&scheduleID,
		&templateID,
		&artifactPath,
		&artifactBytes,
		&errCode,
		&errMessage,
		&job.TotalRecords,
		&job.DurationMs,
		&job.Retries,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&downloadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}

	job.Format = domain.Format(format)
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(fields, &job.Fields); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	if scheduleID.Valid {
		id := scheduleID.UUID
		job.ScheduleID = &id
	}
	if templateID.Valid {
		id := templateID.UUID
		job.TemplateID = &id
	}
	if artifactPath.Valid {
		job.Artifact = &domain.Artifact{Path: artifactPath.String, ByteSize: artifactBytes.Int64}
	}
	if errCode.Valid {
		job.Error = &domain.ExecError{Code: errCode.String, Message: errMessage.String}
	}
	job.StartedAt = nullTimePtr(startedAt)
	job.CompletedAt = nullTimePtr(completedAt)
	job.LastDownloadedAt = nullTimePtr(downloadedAt)
	return job, nil
}

// --- schedules ---

func (s *Store) CreateSchedule(ctx context.Context, sched domain.Schedule) error {
	fields, err := json.Marshal(sched.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertSchedule,
		sched.ID,
		sched.OwnerID,
		sched.Name,
		sched.Description,
		string(sched.Format),
		fields,
		sched.FilterSpec,
		sched.SortSpec,
		pq.Array(sched.RelatedInclusion),
		string(sched.Frequency),
		sched.CustomExpr,
		sched.Retention.KeepCount,
		sched.Retention.KeepDays,
		nullUUID(sched.TemplateID),
		sched.IsActive,
		sched.NextRunAt,
		sched.CreatedAt,
	)
	if isDuplicateKeyError(err) {
		return domain.ErrDuplicateName
	}
	return err
}

func (s *Store) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (domain.Schedule, error) {
	return scanSchedule(s.db.QueryRowContext(ctx, queryGetSchedule, scheduleID))
}

func (s *Store) ListSchedules(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Schedule, error) {
	return s.querySchedules(ctx, queryListSchedules, ownerID, limit, offset)
}

func (s *Store) GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	return s.querySchedules(ctx, queryGetDueSchedules, now, limit)
}

func (s *Store) ListRetentionSchedules(ctx context.Context, limit int) ([]domain.Schedule, error) {
	return s.querySchedules(ctx, queryListRetentionSchedules, limit)
}

// ClaimSchedule atomically advances next_run_at from dueAt to
// provisionalNext. The equality guard is the claim: two racing ticks issue
// the same UPDATE, the row lock serializes them, and only the first still
// sees next_run_at = dueAt.
func (s *Store) ClaimSchedule(ctx context.Context, scheduleID uuid.UUID, dueAt, provisionalNext time.Time) error {
	result, err := s.db.ExecContext(ctx, queryClaimSchedule, scheduleID, dueAt, provisionalNext)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrStaleClaim
	}
	return nil
}

// ReleaseSchedule restores next_run_at to dueAt so the schedule re-fires.
func (s *Store) ReleaseSchedule(ctx context.Context, scheduleID uuid.UUID, dueAt time.Time) error {
	_, err := s.db.ExecContext(ctx, queryReleaseSchedule, scheduleID, dueAt)
	return err
}

func (s *Store) RecordScheduleRun(ctx context.Context, scheduleID uuid.UUID, success bool, lastError string, ranAt, nextRunAt time.Time) error {
	_, err := s.db.ExecContext(ctx, queryRecordScheduleRun, scheduleID, success, lastError, ranAt, nextRunAt)
	return err
}

// SetScheduleActive toggles is_active. When activating, nextRunAt carries the
// freshly computed next occurrence; nil leaves next_run_at untouched.
func (s *Store) SetScheduleActive(ctx context.Context, scheduleID uuid.UUID, active bool, nextRunAt *time.Time, at time.Time) error {
	var updatedID uuid.UUID
	err := s.db.QueryRowContext(ctx, querySetScheduleActive, scheduleID, active, nullTime(nextRunAt), at).Scan(&updatedID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// DeleteSchedule removes the definition. Produced jobs keep their rows; the
// reaper or explicit deletion removes those.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteSchedule, scheduleID).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sched)
	}
	return result, rows.Err()
}

func scanSchedule(row rowScanner) (domain.Schedule, error) {
	var (
		sched               domain.Schedule
		format, frequency   string
		fields              []byte
		templateID          uuid.NullUUID
		lastRunAt           sql.NullTime
		keepCount, keepDays int
	)

	err := row.Scan(
		&sched.ID,
		&sched.OwnerID,
		&sched.Name,
		&sched.Description,
		&format,
		&fields,
		&sched.FilterSpec,
		&sched.SortSpec,
		pq.Array(&sched.RelatedInclusion),
		&frequency,
		&sched.CustomExpr,
		&keepCount,
		&keepDays,
		&templateID,
		&sched.IsActive,
		&sched.NextRunAt,
		&lastRunAt,
		&sched.RunCount,
		&sched.SuccessCount,
		&sched.FailureCount,
		&sched.LastError,
		&sched.CreatedAt,
		&sched.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Schedule{}, err
	}

	sched.Format = domain.Format(format)
	sched.Frequency = domain.Frequency(frequency)
	sched.Retention = domain.RetentionPolicy{KeepCount: keepCount, KeepDays: keepDays}
	if err := json.Unmarshal(fields, &sched.Fields); err != nil {
		return domain.Schedule{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	if templateID.Valid {
		id := templateID.UUID
		sched.TemplateID = &id
	}
	sched.LastRunAt = nullTimePtr(lastRunAt)
	return sched, nil
}

// --- templates ---

// CreateTemplate inserts the template; when it is marked default, all sibling
// defaults of the same owner are cleared in the same transaction so at most
// one default survives.
func (s *Store) CreateTemplate(ctx context.Context, tpl domain.Template) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if tpl.IsDefault {
		if _, err := tx.ExecContext(ctx, queryClearDefaultTemplates, tpl.OwnerID, tpl.CreatedAt); err != nil {
			return err
		}
	}

	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, queryInsertTemplate,
		tpl.ID,
		tpl.OwnerID,
		tpl.Name,
		string(tpl.Format),
		fields,
		tpl.FilterSpec,
		tpl.SortSpec,
		tpl.IsDefault,
		tpl.IsPublic,
		tpl.CreatedAt,
	)
	if isDuplicateKeyError(err) {
		return domain.ErrDuplicateName
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetTemplate(ctx context.Context, templateID uuid.UUID) (domain.Template, error) {
	var (
		tpl    domain.Template
		format string
		fields []byte
	)
	err := s.db.QueryRowContext(ctx, queryGetTemplate, templateID).Scan(
		&tpl.ID,
		&tpl.OwnerID,
		&tpl.Name,
		&format,
		&fields,
		&tpl.FilterSpec,
		&tpl.SortSpec,
		&tpl.IsDefault,
		&tpl.IsPublic,
		&tpl.UsageCount,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Template{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Template{}, err
	}
	tpl.Format = domain.Format(format)
	if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
		return domain.Template{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	return tpl, nil
}

func (s *Store) ListTemplates(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Template, error) {
	rows, err := s.db.QueryContext(ctx, queryListTemplates, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Template
	for rows.Next() {
		var (
			tpl    domain.Template
			format string
			fields []byte
		)
		err := rows.Scan(
			&tpl.ID,
			&tpl.OwnerID,
			&tpl.Name,
			&format,
			&fields,
			&tpl.FilterSpec,
			&tpl.SortSpec,
			&tpl.IsDefault,
			&tpl.IsPublic,
			&tpl.UsageCount,
			&tpl.CreatedAt,
			&tpl.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tpl.Format = domain.Format(format)
		if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, templateID uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteTemplate, templateID).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) IncrementTemplateUsage(ctx context.Context, templateID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, queryIncrementTemplateUsage, templateID)
	return err
}

// --- helpers ---

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// isDuplicateKeyError checks for a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Compile-time interface assertions
var (
	_ scheduler.Store     = (*Store)(nil)
	_ runner.Store        = (*Store)(nil)
	_ retention.Store     = (*Store)(nil)
	_ janitor.Store       = (*Store)(nil)
	_ api.Store           = (*Store)(nil)
	_ api.HealthChecker   = (*Store)(nil)
)
