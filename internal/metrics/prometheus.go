package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal       prometheus.Counter
	tickErrorsTotal  prometheus.Counter
	schedulesClaimed prometheus.Counter
	tickDuration     prometheus.Histogram

	// Runner metrics
	jobsStartedTotal  *prometheus.CounterVec
	jobsFinishedTotal *prometheus.CounterVec
	jobDuration       prometheus.Histogram
	recordsExported   prometheus.Counter
	jobsInFlight      prometheus.Gauge

	// Bus metrics
	busBufferSize   prometheus.Gauge
	emitErrorsTotal prometheus.Counter

	// Retention / janitor metrics
	retentionDeletedTotal prometheus.Counter
	retentionPassDuration prometheus.Histogram
	retentionErrorsTotal  prometheus.Counter
	stuckJobsFailedTotal  prometheus.Counter

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left as no-ops.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initRunnerMetrics(reg)
	s.initBusMetrics(reg)
	s.initSweepMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_scheduler_tick_errors_total",
		Help: "Total number of scheduler tick errors.",
	})
	s.schedulesClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_scheduler_schedules_claimed_total",
		Help: "Total number of due schedules claimed (jobs created).",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exportd_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	s.register(reg, s.ticksTotal, "exportd_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "exportd_scheduler_tick_errors_total")
	s.register(reg, s.schedulesClaimed, "exportd_scheduler_schedules_claimed_total")
	s.register(reg, s.tickDuration, "exportd_scheduler_tick_duration_seconds")
}

func (s *PrometheusSink) initRunnerMetrics(reg prometheus.Registerer) {
	s.jobsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exportd_runner_jobs_started_total",
		Help: "Total number of export jobs picked up by the runner.",
	}, []string{"format"})

	s.jobsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exportd_runner_jobs_finished_total",
		Help: "Total number of export jobs that reached a terminal outcome.",
	}, []string{"outcome", "format"})

	s.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exportd_runner_job_duration_seconds",
		Help:    "End-to-end export execution time in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	s.recordsExported = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_runner_records_exported_total",
		Help: "Total number of records written into artifacts.",
	})

	s.jobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exportd_runner_jobs_in_flight",
		Help: "Number of export jobs currently executing.",
	})

	s.register(reg, s.jobsStartedTotal, "exportd_runner_jobs_started_total")
	s.register(reg, s.jobsFinishedTotal, "exportd_runner_jobs_finished_total")
	s.register(reg, s.jobDuration, "exportd_runner_job_duration_seconds")
	s.register(reg, s.recordsExported, "exportd_runner_records_exported_total")
	s.register(reg, s.jobsInFlight, "exportd_runner_jobs_in_flight")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.busBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exportd_bus_buffer_size",
		Help: "Current number of job requests buffered on the bus.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_bus_emit_errors_total",
		Help: "Total number of enqueue failures (buffer full).",
	})

	s.register(reg, s.busBufferSize, "exportd_bus_buffer_size")
	s.register(reg, s.emitErrorsTotal, "exportd_bus_emit_errors_total")
}

func (s *PrometheusSink) initSweepMetrics(reg prometheus.Registerer) {
	s.retentionDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_retention_jobs_deleted_total",
		Help: "Total number of jobs removed by the retention reaper.",
	})
	s.retentionPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exportd_retention_pass_duration_seconds",
		Help:    "Duration of each retention pass in seconds.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	})
	s.retentionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_retention_pass_errors_total",
		Help: "Total number of retention passes that hit an error.",
	})
	s.stuckJobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_janitor_stuck_jobs_failed_total",
		Help: "Total number of stuck jobs forced to failed by the janitor.",
	})

	s.register(reg, s.retentionDeletedTotal, "exportd_retention_jobs_deleted_total")
	s.register(reg, s.retentionPassDuration, "exportd_retention_pass_duration_seconds")
	s.register(reg, s.retentionErrorsTotal, "exportd_retention_pass_errors_total")
	s.register(reg, s.stuckJobsFailedTotal, "exportd_janitor_stuck_jobs_failed_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exportd_leader_status",
		Help: "1 when this instance holds the leader lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exportd_leader_acquired_total",
		Help: "Total number of times this instance acquired leadership.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exportd_leader_lost_total",
		Help: "Total number of times this instance lost leadership.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "exportd_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "exportd_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "exportd_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, schedulesClaimed int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.schedulesClaimed.Add(float64(schedulesClaimed))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

// Runner metrics implementation

func (s *PrometheusSink) JobStarted(format string) {
	s.jobsStartedTotal.WithLabelValues(format).Inc()
}

func (s *PrometheusSink) JobFinished(outcome string, format string, duration time.Duration) {
	s.jobsFinishedTotal.WithLabelValues(outcome, format).Inc()
	s.jobDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RecordsExported(count int) {
	s.recordsExported.Add(float64(count))
}

func (s *PrometheusSink) JobsInFlightIncr() {
	s.jobsInFlight.Inc()
}

func (s *PrometheusSink) JobsInFlightDecr() {
	s.jobsInFlight.Dec()
}

// Bus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.busBufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	// Capacity is static; exposed via the size gauge's help text only.
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Retention / janitor metrics implementation

func (s *PrometheusSink) RetentionPassCompleted(duration time.Duration, deleted int, err error) {
	s.retentionPassDuration.Observe(duration.Seconds())
	s.retentionDeletedTotal.Add(float64(deleted))
	if err != nil {
		s.retentionErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) StuckJobsFailed(count int) {
	s.stuckJobsFailedTotal.Add(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
