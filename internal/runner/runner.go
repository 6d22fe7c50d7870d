// Package runner executes export jobs: fetch records, serialize, persist the
// artifact, and commit exactly one terminal status.
//
// All terminal transitions are conditional writes guarded on the current
// status, so a user cancellation that lands mid-execution is never
// overwritten by a stale success or failure.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/export"
	"github.com/recordly/exportd/internal/metrics"
	"github.com/recordly/exportd/internal/recurrence"
)

type Store interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (domain.Job, error)

	// MarkProcessing transitions pending -> processing and sets started_at.
	// Implementations MUST perform a conditional update and return
	// domain.ErrTerminalTransitionDenied when the job is no longer pending.
	MarkProcessing(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error

	// CompleteJob transitions processing -> completed with the artifact.
	// Conditional on status = processing; returns
	// domain.ErrTerminalTransitionDenied when cancellation won the race.
	CompleteJob(ctx context.Context, jobID uuid.UUID, artifact domain.Artifact, totalRecords int, durationMs int64, completedAt time.Time) error

	// FailJob transitions processing -> failed with a structured error,
	// under the same conditional-write contract as CompleteJob.
	FailJob(ctx context.Context, jobID uuid.UUID, execErr domain.ExecError, totalRecords int, failedAt time.Time) error

	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (domain.Schedule, error)

	// RecordScheduleRun updates run stats, last_run_at, and next_run_at after
	// a run reaches completed or failed.
	RecordScheduleRun(ctx context.Context, scheduleID uuid.UUID, success bool, lastError string, ranAt, nextRunAt time.Time) error
}

// RecordProvider is the external collaborator that resolves the opaque
// filter into the record set to export.
type RecordProvider interface {
	Fetch(ctx context.Context, query domain.RecordQuery) ([]domain.Record, error)
}

// ArtifactStore persists rendered output.
type ArtifactStore interface {
	Save(name string, r io.Reader) (path string, size int64, err error)
	Remove(path string) error
}

// Gate receives run outcomes so repeatedly failing schedules get paused.
type Gate interface {
	RecordSuccess(scheduleID uuid.UUID)
	RecordFailure(scheduleID uuid.UUID)
}

// AnalyticsSink records run outcomes as a best-effort side effect.
type AnalyticsSink interface {
	Record(ctx context.Context, scheduleID uuid.UUID, format domain.Format, success bool, at time.Time)
}

// MetricsSink records runner metrics. Methods must not block.
type MetricsSink interface {
	JobStarted(format string)
	JobFinished(outcome string, format string, duration time.Duration)
	RecordsExported(count int)
	JobsInFlightIncr()
	JobsInFlightDecr()
}

type Runner struct {
	store     Store
	provider  RecordProvider
	artifacts ArtifactStore

	serializers func(domain.Format) (export.Serializer, error)
	jobTimeout  time.Duration

	gate      Gate          // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	clock     func() time.Time
}

func New(store Store, provider RecordProvider, artifacts ArtifactStore, jobTimeout time.Duration) *Runner {
	return &Runner{
		store:       store,
		provider:    provider,
		artifacts:   artifacts,
		serializers: export.ForFormat,
		jobTimeout:  jobTimeout,
		clock:       time.Now,
	}
}

func (r *Runner) WithGate(gate Gate) *Runner {
	r.gate = gate
	return r
}

func (r *Runner) WithAnalytics(sink AnalyticsSink) *Runner {
	r.analytics = sink
	return r
}

func (r *Runner) WithMetrics(sink MetricsSink) *Runner {
	r.metrics = sink
	return r
}

// Execute runs one export job to a terminal state. Errors during execution
// are recorded on the job, never returned to the submitter; the returned
// error covers only infrastructure failures worth logging upstream.
func (r *Runner) Execute(ctx context.Context, req domain.JobRequest) error {
	job, err := r.store.GetJob(ctx, req.JobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", req.JobID, err)
	}

	startedAt := r.clock().UTC()
	if err := r.store.MarkProcessing(ctx, job.ID, startedAt); err != nil {
		if errors.Is(err, domain.ErrTerminalTransitionDenied) {
			// Cancelled before pickup, or another runner claimed it.
			log.Printf("runner: job=%s not pending, skipping", job.ID)
			if r.metrics != nil {
				r.metrics.JobFinished(metrics.OutcomeSkipped, string(job.Format), 0)
			}
			return nil
		}
		return fmt.Errorf("mark processing %s: %w", job.ID, err)
	}

	if r.metrics != nil {
		r.metrics.JobStarted(string(job.Format))
		r.metrics.JobsInFlightIncr()
		defer r.metrics.JobsInFlightDecr()
	}

	outcome := r.execute(ctx, job, startedAt)

	if r.metrics != nil {
		r.metrics.JobFinished(outcome, string(job.Format), r.clock().UTC().Sub(startedAt))
	}
	return nil
}

// execute performs the export and commits the terminal state.
// Returns the metrics outcome label.
func (r *Runner) execute(ctx context.Context, job domain.Job, startedAt time.Time) string {
	execCtx := ctx
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	serializer, err := r.serializers(job.Format)
	if err != nil {
		return r.fail(ctx, job, startedAt, 0, domain.ErrCodeSerialize, err)
	}

	records, err := r.provider.Fetch(execCtx, domain.RecordQuery{
		FilterSpec:       job.FilterSpec,
		SortSpec:         job.SortSpec,
		RelatedInclusion: job.RelatedInclusion,
	})
	if err != nil {
		return r.fail(ctx, job, startedAt, 0, domain.ErrCodeQuery, err)
	}
	total := len(records)

	var buf bytes.Buffer
	if err := serializer.Write(&buf, records, job.Fields); err != nil {
		return r.fail(ctx, job, startedAt, total, domain.ErrCodeSerialize, err)
	}

	name := job.PublicID + "." + serializer.FileExtension()
	path, size, err := r.artifacts.Save(name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return r.fail(ctx, job, startedAt, total, domain.ErrCodeArtifact, err)
	}

	completedAt := r.clock().UTC()
	artifact := domain.Artifact{Path: path, ByteSize: size}
	durationMs := completedAt.Sub(startedAt).Milliseconds()

	if err := r.store.CompleteJob(ctx, job.ID, artifact, total, durationMs, completedAt); err != nil {
		if errors.Is(err, domain.ErrTerminalTransitionDenied) {
			// Cancelled mid-run: the artifact must not outlive the job state.
			log.Printf("runner: job=%s cancelled during execution, discarding artifact", job.ID)
			if rerr := r.artifacts.Remove(path); rerr != nil {
				log.Printf("runner: job=%s orphan artifact cleanup failed: %v", job.ID, rerr)
			}
			return metrics.OutcomeCancelled
		}
		log.Printf("runner: job=%s terminal write failed: %v", job.ID, err)
		return metrics.OutcomeFailed
	}

	if r.metrics != nil {
		r.metrics.RecordsExported(total)
	}
	log.Printf("runner: job=%s completed records=%d bytes=%d", job.ID, total, size)
	r.bookkeepSchedule(ctx, job, true, "")
	return metrics.OutcomeCompleted
}

// fail commits the failed state with a structured error. A cancellation that
// raced ahead wins; failure is then a no-op.
func (r *Runner) fail(ctx context.Context, job domain.Job, startedAt time.Time, total int, code string, cause error) string {
	execErr := domain.ExecError{Code: code, Message: cause.Error()}
	log.Printf("runner: job=%s failed code=%s err=%v", job.ID, code, cause)

	if err := r.store.FailJob(ctx, job.ID, execErr, total, r.clock().UTC()); err != nil {
		if errors.Is(err, domain.ErrTerminalTransitionDenied) {
			log.Printf("runner: job=%s already terminal, failure not recorded", job.ID)
			return metrics.OutcomeCancelled
		}
		log.Printf("runner: job=%s failure write failed: %v", job.ID, err)
	}

	r.bookkeepSchedule(ctx, job, false, execErr.Error())
	return metrics.OutcomeFailed
}

// bookkeepSchedule updates the owning schedule after a terminal run.
// Best-effort: errors are logged, never propagated — but skipping it would
// stall the schedule, so it runs for every completed or failed job.
func (r *Runner) bookkeepSchedule(ctx context.Context, job domain.Job, success bool, lastError string) {
	if job.ScheduleID == nil {
		return
	}
	scheduleID := *job.ScheduleID

	if r.gate != nil {
		if success {
			r.gate.RecordSuccess(scheduleID)
		} else {
			r.gate.RecordFailure(scheduleID)
		}
	}

	now := r.clock().UTC()
	if r.analytics != nil {
		r.analytics.Record(ctx, scheduleID, job.Format, success, now)
	}

	sched, err := r.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		log.Printf("runner: job=%s schedule %s lookup failed: %v", job.ID, scheduleID, err)
		return
	}

	next := recurrence.Next(sched.Frequency, sched.CustomExpr, now)
	if err := r.store.RecordScheduleRun(ctx, scheduleID, success, lastError, now, next); err != nil {
		log.Printf("runner: job=%s schedule %s bookkeeping failed: %v", job.ID, scheduleID, err)
	}
}
