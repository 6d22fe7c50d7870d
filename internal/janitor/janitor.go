// Package janitor keeps the job table from silting up with jobs that will
// never make progress on their own.
//
// Two failure modes are swept. A pending job whose enqueue was lost (buffer
// overflow, crash between insert and handoff) is re-enqueued; the runner's
// pending-only claim makes a duplicate delivery harmless. A processing job
// whose runner died is force-failed once it exceeds the job timeout, so no
// job stays in processing forever.
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
)

type Store interface {
	// GetOrphanedPendingJobs returns pending jobs created before olderThan.
	GetOrphanedPendingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error)

	// GetStuckProcessingJobs returns processing jobs started before olderThan.
	GetStuckProcessingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error)

	// FailJob transitions processing -> failed, conditional on the current
	// status; domain.ErrTerminalTransitionDenied means the runner finished
	// after the scan and the force-fail must not apply.
	FailJob(ctx context.Context, jobID uuid.UUID, execErr domain.ExecError, totalRecords int, failedAt time.Time) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.JobRequest) error
}

// MetricsSink records janitor metrics. Methods must not block.
type MetricsSink interface {
	StuckJobsFailed(count int)
}

type Config struct {
	// Interval is how often the janitor sweeps. Default: 5 minutes.
	Interval time.Duration

	// OrphanThreshold is the age after which a pending job is assumed to have
	// missed its handoff. Default: 10 minutes.
	OrphanThreshold time.Duration

	// StuckThreshold is the processing age after which a job is force-failed.
	// Must exceed the runner's job timeout.
	StuckThreshold time.Duration

	// BatchSize caps how many jobs each sweep touches per category.
	// Default: 100.
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Minute,
		OrphanThreshold: 10 * time.Minute,
		StuckThreshold:  15 * time.Minute,
		BatchSize:       100,
	}
}

type Janitor struct {
	config  Config
	store   Store
	bus     Enqueuer
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func New(config Config, store Store, bus Enqueuer) *Janitor {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Janitor{
		config: config,
		store:  store,
		bus:    bus,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the janitor.
func (j *Janitor) WithMetrics(sink MetricsSink) *Janitor {
	j.metrics = sink
	return j
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	log.Printf("janitor: started (interval=%s, orphan=%s, stuck=%s)",
		j.config.Interval, j.config.OrphanThreshold, j.config.StuckThreshold)

	// Sweep immediately on startup, then on ticker
	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("janitor: stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	j.requeueOrphans(ctx)
	j.failStuck(ctx)
}

// requeueOrphans re-enqueues pending jobs that were never delivered.
func (j *Janitor) requeueOrphans(ctx context.Context) {
	now := j.clock().UTC()
	olderThan := now.Add(-j.config.OrphanThreshold)

	orphans, err := j.store.GetOrphanedPendingJobs(ctx, olderThan, j.config.BatchSize)
	if err != nil {
		log.Printf("janitor: failed to fetch orphaned jobs: %v", err)
		return
	}
	if len(orphans) == 0 {
		return
	}

	log.Printf("janitor: found %d orphaned pending jobs", len(orphans))

	requeued := 0
	for _, job := range orphans {
		if ctx.Err() != nil {
			log.Printf("janitor: sweep interrupted, re-enqueued %d/%d orphans", requeued, len(orphans))
			return
		}

		req := domain.JobRequest{JobID: job.ID, ScheduleID: job.ScheduleID, EnqueuedAt: now}
		if err := j.bus.Enqueue(ctx, req); err != nil {
			// Buffer still full; the job stays pending and the next sweep retries.
			log.Printf("janitor: re-enqueue job=%s failed: %v", job.ID, err)
			continue
		}
		log.Printf("janitor: re-enqueued job=%s (age=%s)", job.ID, now.Sub(job.CreatedAt).Round(time.Second))
		requeued++
	}
}

// failStuck force-fails processing jobs whose runner is presumed dead.
func (j *Janitor) failStuck(ctx context.Context) {
	now := j.clock().UTC()
	olderThan := now.Add(-j.config.StuckThreshold)

	stuck, err := j.store.GetStuckProcessingJobs(ctx, olderThan, j.config.BatchSize)
	if err != nil {
		log.Printf("janitor: failed to fetch stuck jobs: %v", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	execErr := domain.ExecError{
		Code:    domain.ErrCodeStuck,
		Message: "no terminal status within the allowed processing time",
	}

	failed := 0
	for _, job := range stuck {
		if ctx.Err() != nil {
			break
		}
		if err := j.store.FailJob(ctx, job.ID, execErr, job.TotalRecords, now); err != nil {
			// The runner may have finished between scan and write.
			log.Printf("janitor: force-fail job=%s skipped: %v", job.ID, err)
			continue
		}
		age := time.Duration(0)
		if job.StartedAt != nil {
			age = now.Sub(*job.StartedAt).Round(time.Second)
		}
		log.Printf("janitor: force-failed job=%s (processing for %s)", job.ID, age)
		failed++
	}

	if failed > 0 {
		log.Printf("janitor: force-failed %d stuck jobs", failed)
		if j.metrics != nil {
			j.metrics.StuckJobsFailed(failed)
		}
	}
}
