package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/recordly/exportd/internal/analytics"
	"github.com/recordly/exportd/internal/api"
	"github.com/recordly/exportd/internal/artifact"
	"github.com/recordly/exportd/internal/config"
	"github.com/recordly/exportd/internal/janitor"
	"github.com/recordly/exportd/internal/leaderelection"
	"github.com/recordly/exportd/internal/metrics"
	"github.com/recordly/exportd/internal/provider"
	"github.com/recordly/exportd/internal/retention"
	"github.com/recordly/exportd/internal/runner"
	"github.com/recordly/exportd/internal/scheduler"
	"github.com/recordly/exportd/internal/store/postgres"
	"github.com/recordly/exportd/internal/throttle"
	"github.com/recordly/exportd/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

// defaultOwnerID is the tenant all submissions are attributed to when
// OWNER_ID is not set (single-tenant mode).
var defaultOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`exportd - scheduled data export service

Usage:
  exportd <command>

Commands:
  serve      Start the export service (API, scheduler, runner pool)
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL               PostgreSQL connection string (required)
  REDIS_ADDR                 Redis address for export analytics (optional)
  HTTP_ADDR                  HTTP server address (default: ":8080")
  OWNER_ID                   Tenant UUID for API submissions (optional)
  ARTIFACT_DIR               Directory for export artifacts (default: "/var/lib/exportd/artifacts")
  RECORD_TABLE               Source table exports read from (default: "records")

  TICK_INTERVAL              Scheduler tick interval (default: "30s")
  SCHEDULER_BATCH_SIZE       Max due schedules per tick (default: "100")

  RUNNER_WORKERS             Concurrent export workers (default: "4")
  JOB_TIMEOUT                Per-export execution timeout (default: "10m")
  RUNNER_DRAIN_TIMEOUT       Buffered job drain timeout at shutdown (default: "30s")
  BUS_BUFFER_SIZE            Job request buffer capacity (default: "100")

  RETENTION_INTERVAL         Retention reaper pass interval (default: "10m")
  RETENTION_BATCH_SIZE       Max schedules per retention pass (default: "100")
  JANITOR_INTERVAL           Janitor sweep interval (default: "5m")
  JANITOR_ORPHAN_THRESHOLD   Age before a pending job is re-enqueued (default: "10m")

  GATE_THRESHOLD             Consecutive failures before a schedule is paused;
                             0 disables the gate (default: "3")
  GATE_COOLDOWN              Pause duration after hitting the threshold (default: "15m")

  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME      Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  LEADER_ELECTION_ENABLED    Run background loops on one instance only (default: "false")
  LEADER_LOCK_KEY            Advisory lock key shared by all instances (default: "911417")
  LEADER_RETRY_INTERVAL      Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL  Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	ownerID := defaultOwnerID
	if cfg.OwnerID != "" {
		ownerID = uuid.MustParse(cfg.OwnerID) // Validate() already checked it parses
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("exportd: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)
	artifacts := artifact.NewOSStore(cfg.ArtifactDir)

	records, err := provider.NewSQLProvider(db, cfg.RecordTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid RECORD_TABLE: %v\n", err)
		return exitInvalidConfig
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("exportd: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("exportd: METRICS_ENABLED not set; metrics disabled")
	}

	// Create job bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewJobBus(cfg.BusBufferSize, busOpts...)

	// Failure gate shared by the scheduler (skip paused) and runner (record outcomes)
	var gate *throttle.FailureGate
	if cfg.GateThreshold > 0 {
		gate = throttle.NewFailureGate(cfg.GateThreshold, cfg.GateCooldown)
		log.Printf("exportd: failure gate enabled (threshold=%d, cooldown=%s)", cfg.GateThreshold, cfg.GateCooldown)
	} else {
		log.Println("exportd: GATE_THRESHOLD=0; failure gate disabled")
	}

	sched := scheduler.New(
		scheduler.Config{TickInterval: cfg.TickInterval, BatchSize: cfg.SchedulerBatchSize},
		store,
		bus,
	)
	if gate != nil {
		sched = sched.WithGate(gate)
	}
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	run := runner.New(store, records, artifacts, cfg.JobTimeout)
	if gate != nil {
		run = run.WithGate(gate)
	}
	if metricsSink != nil {
		run = run.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient)
		run = run.WithAnalytics(sink)
		log.Printf("exportd: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("exportd: REDIS_ADDR not set; analytics disabled")
	}

	pool := runner.NewPool(run, cfg.RunnerWorkers).WithDrainTimeout(cfg.RunnerDrainTimeout)

	reaper := retention.New(
		retention.Config{Interval: cfg.RetentionInterval, BatchSize: cfg.RetentionBatchSize},
		store,
		artifacts,
	)
	if metricsSink != nil {
		reaper = reaper.WithMetrics(metricsSink)
	}

	// The stuck threshold must exceed the job timeout or the janitor would
	// fail jobs that are still legitimately running.
	jan := janitor.New(
		janitor.Config{
			Interval:        cfg.JanitorInterval,
			OrphanThreshold: cfg.JanitorOrphanThreshold,
			StuckThreshold:  cfg.JobTimeout + 5*time.Minute,
		},
		store,
		bus,
	)
	if metricsSink != nil {
		jan = jan.WithMetrics(metricsSink)
	}

	// Create API handler with the same store instance
	apiHandler := api.NewHandler(store, artifacts, ownerID).
		WithBus(bus).
		WithHealthChecker(store)

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("exportd: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("exportd: http server error: %v", err)
		}
	}()

	// The runner pool serves jobs enqueued by the API on every instance;
	// the scheduler, reaper, and janitor are leader-only loops when
	// leader election is enabled.
	poolCtx, cancelPool := context.WithCancel(context.Background())
	var poolWg sync.WaitGroup
	poolWg.Add(1)
	go func() {
		defer poolWg.Done()
		pool.Run(poolCtx, bus.Channel())
	}()

	loops := &backgroundLoops{
		scheduler: sched,
		reaper:    reaper,
		janitor:   jan,
	}

	electionCtx, cancelElection := context.WithCancel(context.Background())
	var electionWg sync.WaitGroup

	if cfg.LeaderElectionEnabled {
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			leaderelection.Callbacks{
				OnElected: loops.start,
				OnDemoted: loops.stop,
			},
		)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}
		electionWg.Add(1)
		go func() {
			defer electionWg.Done()
			elector.Run(electionCtx)
		}()
		log.Printf("exportd: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		loops.start(electionCtx)
	}

	log.Printf("exportd: started (tick=%s, workers=%d, http=%s)", cfg.TickInterval, cfg.RunnerWorkers, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("exportd: received signal %v, shutting down", received)

	// Phase 1: Stop the leader-only loops (no new jobs spawned or re-enqueued)
	log.Println("exportd: stopping background loops...")
	if cfg.LeaderElectionEnabled {
		cancelElection()
		electionWg.Wait()
	} else {
		cancelElection()
		loops.stop()
	}
	log.Println("exportd: background loops stopped")

	// Phase 2: Stop the runner pool (drains buffered jobs before returning)
	log.Println("exportd: stopping runner pool (draining jobs)...")
	cancelPool()
	poolWg.Wait()
	log.Println("exportd: runner pool stopped")

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("exportd: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("exportd: http server shutdown error: %v", err)
	}
	log.Println("exportd: http server stopped")

	log.Println("exportd: stopped")
	return exitSuccess
}

// backgroundLoops bundles the leader-only loops so leadership transitions
// can start and stop them as a unit. stop blocks until all loops returned
// and is safe to call more than once.
type backgroundLoops struct {
	scheduler *scheduler.Scheduler
	reaper    *retention.Reaper
	janitor   *janitor.Janitor

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (l *backgroundLoops) start(parent context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return // already running
	}

	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel

	l.wg.Add(3)
	go func() {
		defer l.wg.Done()
		l.scheduler.Run(ctx)
	}()
	go func() {
		defer l.wg.Done()
		l.reaper.Run(ctx)
	}()
	go func() {
		defer l.wg.Done()
		l.janitor.Run(ctx)
	}()

	// Stop the loops when the parent (leadership) context ends, even if
	// stop() is never called directly.
	go func() {
		<-parent.Done()
		l.stop()
	}()
}

func (l *backgroundLoops) stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("exportd version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
