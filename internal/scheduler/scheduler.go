// Package scheduler scans for due export schedules and spawns pending jobs.
//
// Claiming a due schedule is a single atomic compare-and-set against its
// next_run_at: the winner advances it, the loser's update matches zero rows.
// The durable store is the queue; two scheduler processes sharing a database
// cannot double-fire a due instant.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/recurrence"
)

type Store interface {
	// GetDueSchedules returns active schedules with next_run_at <= now.
	GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)

	// ClaimSchedule atomically advances next_run_at from dueAt to
	// provisionalNext. Implementations MUST perform a conditional update and
	// return domain.ErrStaleClaim when another claimer already advanced it.
	ClaimSchedule(ctx context.Context, scheduleID uuid.UUID, dueAt, provisionalNext time.Time) error

	// ReleaseSchedule restores next_run_at to dueAt after a failed handoff so
	// the schedule re-fires on a later tick.
	ReleaseSchedule(ctx context.Context, scheduleID uuid.UUID, dueAt time.Time) error

	CreateJob(ctx context.Context, job domain.Job) error
}

// Gate lets the scheduler skip schedules that are paused after repeated
// failures. Optional.
type Gate interface {
	Allow(scheduleID uuid.UUID) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.JobRequest) error
}

// MetricsSink records scheduler metrics. All methods must be non-blocking.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, schedulesClaimed int, err error)
}

type Config struct {
	TickInterval time.Duration
	BatchSize    int
}

type Scheduler struct {
	config  Config
	store   Store
	bus     Enqueuer
	gate    Gate        // optional, nil = no throttling
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func New(config Config, store Store, bus Enqueuer) *Scheduler {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Scheduler{
		config: config,
		store:  store,
		bus:    bus,
		clock:  time.Now,
	}
}

// WithGate attaches a failure gate to the scheduler.
func (s *Scheduler) WithGate(gate Gate) *Scheduler {
	s.gate = gate
	return s
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s batch=%d", s.config.TickInterval, s.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.processTick(ctx); err != nil {
				log.Printf("scheduler: tick error: %v", err)
			}
		}
	}
}

func (s *Scheduler) processTick(ctx context.Context) error {
	start := s.clock().UTC()
	if s.metrics != nil {
		s.metrics.TickStarted()
	}

	claimed := 0
	due, err := s.store.GetDueSchedules(ctx, start, s.config.BatchSize)
	if err != nil {
		err = fmt.Errorf("get due schedules: %w", err)
	} else {
		for _, sched := range due {
			ok, perr := s.processSchedule(ctx, sched, start)
			if perr != nil {
				log.Printf("scheduler: schedule %s error: %v", sched.ID, perr)
			}
			if ok {
				claimed++
			}
		}
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().UTC().Sub(start), claimed, err)
	}
	return err
}

// processSchedule claims one due schedule and hands a pending job to the
// runner pool. Returns true when this tick won the claim.
func (s *Scheduler) processSchedule(ctx context.Context, sched domain.Schedule, now time.Time) (bool, error) {
	if s.gate != nil {
		if err := s.gate.Allow(sched.ID); err != nil {
			log.Printf("scheduler: schedule %s skipped: %v", sched.ID, err)
			return false, nil
		}
	}

	dueAt := sched.NextRunAt
	provisionalNext := recurrence.Next(sched.Frequency, sched.CustomExpr, now)

	if err := s.store.ClaimSchedule(ctx, sched.ID, dueAt, provisionalNext); err != nil {
		if errors.Is(err, domain.ErrStaleClaim) {
			return false, nil // another tick or instance won; not an error
		}
		return false, fmt.Errorf("claim: %w", err)
	}

	job := newJobFromSchedule(sched, now)
	if err := s.store.CreateJob(ctx, job); err != nil {
		// The schedule would otherwise never re-fire for this instant.
		if rerr := s.store.ReleaseSchedule(ctx, sched.ID, dueAt); rerr != nil {
			log.Printf("scheduler: schedule %s release failed: %v", sched.ID, rerr)
		}
		return false, fmt.Errorf("create job: %w", err)
	}

	req := domain.JobRequest{JobID: job.ID, ScheduleID: job.ScheduleID, EnqueuedAt: now}
	if err := s.bus.Enqueue(ctx, req); err != nil {
		// The pending row survives; the janitor re-enqueues it.
		log.Printf("scheduler: schedule %s enqueue failed, job %s stays pending: %v", sched.ID, job.ID, err)
		return true, nil
	}

	log.Printf("scheduler: claimed schedule=%s due=%s job=%s", sched.ID, dueAt.Format(time.RFC3339), job.ID)
	return true, nil
}

// newJobFromSchedule snapshots the schedule's export spec into a pending job.
func newJobFromSchedule(sched domain.Schedule, now time.Time) domain.Job {
	scheduleID := sched.ID
	return domain.Job{
		ID:               uuid.New(),
		PublicID:         domain.NewPublicID(),
		OwnerID:          sched.OwnerID,
		Format:           sched.Format,
		Fields:           sched.Fields,
		FilterSpec:       sched.FilterSpec,
		SortSpec:         sched.SortSpec,
		RelatedInclusion: sched.RelatedInclusion,
		Status:           domain.JobStatusPending,
		ScheduleID:       &scheduleID,
		TemplateID:       sched.TemplateID,
		CreatedAt:        now,
	}
}
