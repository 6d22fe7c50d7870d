package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/testutil"
)

type mockStore struct {
	mu      sync.Mutex
	pending []domain.Job
	stuck   []domain.Job

	failed     []uuid.UUID
	failedErrs []domain.ExecError
	failErr    error
}

func (s *mockStore) GetOrphanedPendingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.pending {
		if job.CreatedAt.Before(olderThan) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *mockStore) GetStuckProcessingJobs(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.stuck {
		if job.StartedAt != nil && job.StartedAt.Before(olderThan) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *mockStore) FailJob(ctx context.Context, jobID uuid.UUID, execErr domain.ExecError, totalRecords int, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.failed = append(s.failed, jobID)
	s.failedErrs = append(s.failedErrs, execErr)
	return nil
}

type mockBus struct {
	mu   sync.Mutex
	reqs []domain.JobRequest
	err  error
}

func (b *mockBus) Enqueue(ctx context.Context, req domain.JobRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.reqs = append(b.reqs, req)
	return nil
}

func TestJanitor_RequeuesOrphanedPendingJobs(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	bus := &mockBus{}

	old := domain.Job{ID: uuid.New(), Status: domain.JobStatusPending, CreatedAt: now.Add(-20 * time.Minute)}
	fresh := domain.Job{ID: uuid.New(), Status: domain.JobStatusPending, CreatedAt: now.Add(-time.Minute)}
	store.pending = []domain.Job{old, fresh}

	j := New(DefaultConfig(), store, bus)
	j.clock = testutil.NewFakeClock(now).Now
	j.sweep(context.Background())

	if len(bus.reqs) != 1 {
		t.Fatalf("re-enqueued %d jobs, want 1", len(bus.reqs))
	}
	if bus.reqs[0].JobID != old.ID {
		t.Errorf("re-enqueued %s, want the old orphan %s", bus.reqs[0].JobID, old.ID)
	}
}

func TestJanitor_ForceFailsStuckProcessingJobs(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	bus := &mockBus{}

	oldStart := now.Add(-time.Hour)
	recentStart := now.Add(-time.Minute)
	stuck := domain.Job{ID: uuid.New(), Status: domain.JobStatusProcessing, StartedAt: &oldStart}
	running := domain.Job{ID: uuid.New(), Status: domain.JobStatusProcessing, StartedAt: &recentStart}
	store.stuck = []domain.Job{stuck, running}

	j := New(DefaultConfig(), store, bus)
	j.clock = testutil.NewFakeClock(now).Now
	j.sweep(context.Background())

	if len(store.failed) != 1 || store.failed[0] != stuck.ID {
		t.Fatalf("failed = %v, want just %s", store.failed, stuck.ID)
	}
	if store.failedErrs[0].Code != domain.ErrCodeStuck {
		t.Errorf("error code = %s, want %s", store.failedErrs[0].Code, domain.ErrCodeStuck)
	}
}

func TestJanitor_RaceWithFinishingRunnerIsHarmless(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{failErr: domain.ErrTerminalTransitionDenied}
	bus := &mockBus{}

	oldStart := now.Add(-time.Hour)
	store.stuck = []domain.Job{{ID: uuid.New(), Status: domain.JobStatusProcessing, StartedAt: &oldStart}}

	j := New(DefaultConfig(), store, bus)
	j.clock = testutil.NewFakeClock(now).Now
	j.sweep(context.Background()) // must not panic or record a failure

	if len(store.failed) != 0 {
		t.Errorf("denied transition recorded as failed")
	}
}

func TestJanitor_EnqueueFailureRetriesNextSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	bus := &mockBus{err: errors.New("buffer full")}

	orphan := domain.Job{ID: uuid.New(), Status: domain.JobStatusPending, CreatedAt: now.Add(-time.Hour)}
	store.pending = []domain.Job{orphan}

	j := New(DefaultConfig(), store, bus)
	j.clock = testutil.NewFakeClock(now).Now
	j.sweep(context.Background())

	// Still orphaned; a later sweep with a working bus picks it up.
	bus.err = nil
	j.sweep(context.Background())

	if len(bus.reqs) != 1 || bus.reqs[0].JobID != orphan.ID {
		t.Errorf("orphan not re-enqueued after bus recovered: %v", bus.reqs)
	}
}

type countingSink struct {
	mu    sync.Mutex
	stuck int
}

func (s *countingSink) StuckJobsFailed(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stuck += count
}

func TestJanitor_ReportsStuckMetrics(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	bus := &mockBus{}
	sink := &countingSink{}

	oldStart := now.Add(-time.Hour)
	store.stuck = []domain.Job{
		{ID: uuid.New(), Status: domain.JobStatusProcessing, StartedAt: &oldStart},
		{ID: uuid.New(), Status: domain.JobStatusProcessing, StartedAt: &oldStart},
	}

	j := New(DefaultConfig(), store, bus).WithMetrics(sink)
	j.clock = testutil.NewFakeClock(now).Now
	j.sweep(context.Background())

	if sink.stuck != 2 {
		t.Errorf("sink.stuck = %d, want 2", sink.stuck)
	}
}
