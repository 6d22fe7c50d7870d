package retention

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/recordly/exportd/internal/domain"
	"github.com/recordly/exportd/internal/testutil"
)

type mockStore struct {
	mu        sync.Mutex
	schedules []domain.Schedule
	jobs      map[uuid.UUID][]domain.Job // per schedule, unordered

	deleted []uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[uuid.UUID][]domain.Job)}
}

func (s *mockStore) ListRetentionSchedules(ctx context.Context, limit int) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedules, nil
}

func (s *mockStore) GetTerminalJobs(ctx context.Context, scheduleID uuid.UUID) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs[scheduleID] {
		if job.Status.IsTerminal() && !s.isDeleted(job.ID) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	return out, nil
}

func (s *mockStore) isDeleted(id uuid.UUID) bool {
	for _, d := range s.deleted {
		if d == id {
			return true
		}
	}
	return false
}

func (s *mockStore) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, jobID)
	return nil
}

type mockArtifacts struct {
	mu      sync.Mutex
	removed []string
	failOn  string
}

func (a *mockArtifacts) Remove(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path == a.failOn {
		return errors.New("remove failed")
	}
	a.removed = append(a.removed, path)
	return nil
}

func terminalJob(scheduleID uuid.UUID, ageDays int, now time.Time) domain.Job {
	completedAt := now.AddDate(0, 0, -ageDays)
	return domain.Job{
		ID:          uuid.New(),
		PublicID:    domain.NewPublicID(),
		Status:      domain.JobStatusCompleted,
		ScheduleID:  &scheduleID,
		Artifact:    &domain.Artifact{Path: "/artifacts/" + completedAt.Format("2006-01-02") + ".csv", ByteSize: 10},
		CompletedAt: &completedAt,
	}
}

func TestReaper_KeepsUnionOfCountAndAge(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	artifacts := &mockArtifacts{}

	sched := domain.Schedule{
		ID:        uuid.New(),
		Retention: domain.RetentionPolicy{KeepCount: 2, KeepDays: 7},
	}
	store.schedules = []domain.Schedule{sched}

	// Ages 0,1,3,10,20 days. Most recent 2 = {0,1}; younger than 7d = {0,1,3};
	// union keeps {0,1,3}, deletes {10,20}.
	byAge := make(map[int]domain.Job)
	for _, age := range []int{0, 1, 3, 10, 20} {
		job := terminalJob(sched.ID, age, now)
		byAge[age] = job
		store.jobs[sched.ID] = append(store.jobs[sched.ID], job)
	}

	r := New(Config{Interval: time.Minute}, store, artifacts)
	r.clock = testutil.NewFakeClock(now).Now

	if err := r.processPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	wantDeleted := map[uuid.UUID]bool{byAge[10].ID: true, byAge[20].ID: true}
	if len(store.deleted) != 2 {
		t.Fatalf("deleted %d jobs, want 2", len(store.deleted))
	}
	for _, id := range store.deleted {
		if !wantDeleted[id] {
			t.Errorf("deleted retained job %s", id)
		}
	}
	if len(artifacts.removed) != 2 {
		t.Errorf("removed %d artifacts, want 2", len(artifacts.removed))
	}
}

func TestReaper_NeverDeletesInFlightJobs(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	artifacts := &mockArtifacts{}

	sched := domain.Schedule{
		ID:        uuid.New(),
		Retention: domain.RetentionPolicy{KeepCount: 1, KeepDays: 1},
	}
	store.schedules = []domain.Schedule{sched}

	// An ancient processing job and enough terminal jobs to exceed both bounds.
	startedAt := now.AddDate(0, 0, -90)
	stuck := domain.Job{
		ID:         uuid.New(),
		Status:     domain.JobStatusProcessing,
		ScheduleID: &sched.ID,
		StartedAt:  &startedAt,
	}
	store.jobs[sched.ID] = []domain.Job{
		stuck,
		terminalJob(sched.ID, 0, now),
		terminalJob(sched.ID, 30, now),
	}

	r := New(Config{Interval: time.Minute}, store, artifacts)
	r.clock = testutil.NewFakeClock(now).Now
	_ = r.processPass(context.Background())

	for _, id := range store.deleted {
		if id == stuck.ID {
			t.Fatal("in-flight job deleted by retention")
		}
	}
	if len(store.deleted) != 1 {
		t.Errorf("deleted %d jobs, want 1 (the 30-day-old terminal job)", len(store.deleted))
	}
}

func TestReaper_ArtifactFailureLeavesRecord(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()

	sched := domain.Schedule{
		ID:        uuid.New(),
		Retention: domain.RetentionPolicy{KeepCount: 1, KeepDays: 1},
	}
	store.schedules = []domain.Schedule{sched}

	old := terminalJob(sched.ID, 30, now)
	store.jobs[sched.ID] = []domain.Job{terminalJob(sched.ID, 0, now), old}

	artifacts := &mockArtifacts{failOn: old.Artifact.Path}

	r := New(Config{Interval: time.Minute}, store, artifacts)
	r.clock = testutil.NewFakeClock(now).Now
	if err := r.processPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	// Record must survive so the next pass can retry the artifact.
	if len(store.deleted) != 0 {
		t.Errorf("record deleted despite artifact removal failure")
	}
}

func TestReaper_FailedJobsWithoutArtifactsAreDeletable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	artifacts := &mockArtifacts{}

	sched := domain.Schedule{
		ID:        uuid.New(),
		Retention: domain.RetentionPolicy{KeepCount: 1, KeepDays: 1},
	}
	store.schedules = []domain.Schedule{sched}

	failedAt := now.AddDate(0, 0, -30)
	failed := domain.Job{
		ID:          uuid.New(),
		Status:      domain.JobStatusFailed,
		ScheduleID:  &sched.ID,
		Error:       &domain.ExecError{Code: domain.ErrCodeQuery, Message: "boom"},
		CompletedAt: &failedAt,
	}
	store.jobs[sched.ID] = []domain.Job{terminalJob(sched.ID, 0, now), failed}

	r := New(Config{Interval: time.Minute}, store, artifacts)
	r.clock = testutil.NewFakeClock(now).Now
	_ = r.processPass(context.Background())

	if len(store.deleted) != 1 || store.deleted[0] != failed.ID {
		t.Errorf("deleted = %v, want just the failed job", store.deleted)
	}
	if len(artifacts.removed) != 0 {
		t.Errorf("no artifact should be removed for an artifact-less job")
	}
}

func TestReaper_UnboundedPolicySkipsSchedule(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	artifacts := &mockArtifacts{}

	sched := domain.Schedule{ID: uuid.New()} // zero-valued policy
	store.schedules = []domain.Schedule{sched}
	store.jobs[sched.ID] = []domain.Job{terminalJob(sched.ID, 365, now)}

	r := New(Config{Interval: time.Minute}, store, artifacts)
	r.clock = testutil.NewFakeClock(now).Now
	_ = r.processPass(context.Background())

	if len(store.deleted) != 0 {
		t.Errorf("unbounded policy must not delete anything")
	}
}

type recordingSink struct {
	mu      sync.Mutex
	passes  int
	deleted int
}

func (s *recordingSink) RetentionPassCompleted(d time.Duration, deleted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.deleted += deleted
}

func TestReaper_ReportsPassMetrics(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	artifacts := &mockArtifacts{}
	sink := &recordingSink{}

	sched := domain.Schedule{
		ID:        uuid.New(),
		Retention: domain.RetentionPolicy{KeepCount: 1, KeepDays: 1},
	}
	store.schedules = []domain.Schedule{sched}
	store.jobs[sched.ID] = []domain.Job{
		terminalJob(sched.ID, 0, now),
		terminalJob(sched.ID, 10, now),
		terminalJob(sched.ID, 20, now),
	}

	r := New(Config{Interval: time.Minute}, store, artifacts).WithMetrics(sink)
	r.clock = testutil.NewFakeClock(now).Now
	_ = r.processPass(context.Background())

	if sink.passes != 1 || sink.deleted != 2 {
		t.Errorf("sink = %d passes, %d deleted; want 1 pass, 2 deleted", sink.passes, sink.deleted)
	}
}
