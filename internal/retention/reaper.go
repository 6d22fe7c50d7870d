// Package retention prunes old export jobs and their artifacts according to
// each schedule's retention policy.
//
// A terminal job survives a pass when it is among the keepCount most recent
// terminal jobs of its schedule OR its completion is younger than keepDays.
// Everything outside that union is deleted. Jobs still pending or processing
// are never touched, whatever their age.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
)

type Store interface {
	// ListRetentionSchedules returns schedules eligible for a retention pass.
	ListRetentionSchedules(ctx context.Context, limit int) ([]domain.Schedule, error)

	// GetTerminalJobs returns a schedule's terminal jobs, most recent
	// completion first. Pending and processing jobs are excluded.
	GetTerminalJobs(ctx context.Context, scheduleID uuid.UUID) ([]domain.Job, error)

	DeleteJob(ctx context.Context, jobID uuid.UUID) error
}

// ArtifactRemover deletes artifact files. Missing files are not errors.
type ArtifactRemover interface {
	Remove(path string) error
}

// MetricsSink records retention metrics. Methods must not block.
type MetricsSink interface {
	RetentionPassCompleted(duration time.Duration, deleted int, err error)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

type Reaper struct {
	config    Config
	store     Store
	artifacts ArtifactRemover
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

func New(config Config, store Store, artifacts ArtifactRemover) *Reaper {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Reaper{
		config:    config,
		store:     store,
		artifacts: artifacts,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the reaper.
func (r *Reaper) WithMetrics(sink MetricsSink) *Reaper {
	r.metrics = sink
	return r
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("retention: started, interval=%s batch=%d", r.config.Interval, r.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			log.Println("retention: stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.processPass(ctx); err != nil {
				log.Printf("retention: pass error: %v", err)
			}
		}
	}
}

func (r *Reaper) processPass(ctx context.Context) error {
	start := r.clock().UTC()

	deleted := 0
	schedules, err := r.store.ListRetentionSchedules(ctx, r.config.BatchSize)
	if err != nil {
		err = fmt.Errorf("list schedules: %w", err)
	} else {
		for _, sched := range schedules {
			n, perr := r.reapSchedule(ctx, sched, start)
			if perr != nil {
				// One broken schedule must not starve the rest of the pass.
				log.Printf("retention: schedule %s error: %v", sched.ID, perr)
			}
			deleted += n
		}
	}

	if r.metrics != nil {
		r.metrics.RetentionPassCompleted(r.clock().UTC().Sub(start), deleted, err)
	}
	if deleted > 0 {
		log.Printf("retention: pass deleted %d jobs", deleted)
	}
	return err
}

// reapSchedule deletes one schedule's jobs that fall outside the retained
// union. Returns how many jobs were deleted.
func (r *Reaper) reapSchedule(ctx context.Context, sched domain.Schedule, now time.Time) (int, error) {
	policy := sched.Retention
	if policy.KeepCount < 1 || policy.KeepDays < 1 {
		return 0, nil // unbounded retention
	}

	jobs, err := r.store.GetTerminalJobs(ctx, sched.ID)
	if err != nil {
		return 0, fmt.Errorf("get terminal jobs: %w", err)
	}

	cutoff := now.AddDate(0, 0, -policy.KeepDays)
	deleted := 0
	for i, job := range jobs {
		if i < policy.KeepCount {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.After(cutoff) {
			continue
		}
		if err := r.deleteJob(ctx, job); err != nil {
			log.Printf("retention: schedule %s job %s: %v", sched.ID, job.ID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// deleteJob removes the artifact first, then the record. If the artifact
// cannot be removed the record stays and the next pass retries, so a record
// never points at a file that was already deleted out from under it.
func (r *Reaper) deleteJob(ctx context.Context, job domain.Job) error {
	if job.Artifact != nil {
		if err := r.artifacts.Remove(job.Artifact.Path); err != nil {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	if err := r.store.DeleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
