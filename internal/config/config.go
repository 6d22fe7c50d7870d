package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the exportd application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// OwnerID is the tenant all API submissions are attributed to.
	OwnerID string `json:"owner_id"`

	ArtifactDir string `json:"artifact_dir"`
	RecordTable string `json:"record_table"`

	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	SchedulerBatchSize int `json:"scheduler_batch_size"`

	RunnerWorkers int `json:"runner_workers"`

	// JobTimeout bounds one export's execution; the janitor's stuck threshold
	// must exceed it.
	JobTimeout    time.Duration `json:"-"`
	JobTimeoutStr string        `json:"job_timeout"`

	RunnerDrainTimeout    time.Duration `json:"-"`
	RunnerDrainTimeoutStr string        `json:"runner_drain_timeout"`

	BusBufferSize int `json:"bus_buffer_size"`

	RetentionInterval    time.Duration `json:"-"`
	RetentionIntervalStr string        `json:"retention_interval"`
	RetentionBatchSize   int           `json:"retention_batch_size"`

	JanitorInterval    time.Duration `json:"-"`
	JanitorIntervalStr string        `json:"janitor_interval"`

	JanitorOrphanThreshold    time.Duration `json:"-"`
	JanitorOrphanThresholdStr string        `json:"janitor_orphan_threshold"`

	// GateThreshold: 0 disables the failure gate.
	GateThreshold   int           `json:"gate_threshold"`
	GateCooldown    time.Duration `json:"-"`
	GateCooldownStr string        `json:"gate_cooldown"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	LeaderElectionEnabled bool `json:"leader_election_enabled"`

	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		OwnerID:                    os.Getenv("OWNER_ID"),
		ArtifactDir:                os.Getenv("ARTIFACT_DIR"),
		RecordTable:                os.Getenv("RECORD_TABLE"),
		TickIntervalStr:            os.Getenv("TICK_INTERVAL"),
		JobTimeoutStr:              os.Getenv("JOB_TIMEOUT"),
		RunnerDrainTimeoutStr:      os.Getenv("RUNNER_DRAIN_TIMEOUT"),
		RetentionIntervalStr:       os.Getenv("RETENTION_INTERVAL"),
		JanitorIntervalStr:         os.Getenv("JANITOR_INTERVAL"),
		JanitorOrphanThresholdStr:  os.Getenv("JANITOR_ORPHAN_THRESHOLD"),
		GateCooldownStr:            os.Getenv("GATE_COOLDOWN"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:       os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		LeaderElectionEnabled:      os.Getenv("LEADER_ELECTION_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	cfg.SchedulerBatchSize = intFromEnv("SCHEDULER_BATCH_SIZE", 100)
	cfg.RunnerWorkers = intFromEnv("RUNNER_WORKERS", 4)
	cfg.BusBufferSize = intFromEnv("BUS_BUFFER_SIZE", 100)
	cfg.RetentionBatchSize = intFromEnv("RETENTION_BATCH_SIZE", 100)
	cfg.DBMaxOpenConns = intFromEnv("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = intFromEnv("DB_MAX_IDLE_CONNS", 5)

	if gateStr := os.Getenv("GATE_THRESHOLD"); gateStr != "" {
		if n, err := parseInt(gateStr); err == nil {
			cfg.GateThreshold = n
		} else {
			log.Printf("config: invalid GATE_THRESHOLD %q, using default 3", gateStr)
			cfg.GateThreshold = 3
		}
	} else {
		cfg.GateThreshold = 3
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 911417", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 911417
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "/var/lib/exportd/artifacts"
	}
	if cfg.RecordTable == "" {
		cfg.RecordTable = "records"
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "30s"
	}
	if cfg.JobTimeoutStr == "" {
		cfg.JobTimeoutStr = "10m"
	}
	if cfg.RunnerDrainTimeoutStr == "" {
		cfg.RunnerDrainTimeoutStr = "30s"
	}
	if cfg.RetentionIntervalStr == "" {
		cfg.RetentionIntervalStr = "10m"
	}
	if cfg.JanitorIntervalStr == "" {
		cfg.JanitorIntervalStr = "5m"
	}
	if cfg.JanitorOrphanThresholdStr == "" {
		cfg.JanitorOrphanThresholdStr = "10m"
	}
	if cfg.GateCooldownStr == "" {
		cfg.GateCooldownStr = "15m"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.JobTimeoutStr); err == nil {
		cfg.JobTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RunnerDrainTimeoutStr); err == nil {
		cfg.RunnerDrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RetentionIntervalStr); err == nil {
		cfg.RetentionInterval = d
	}
	if d, err := time.ParseDuration(cfg.JanitorIntervalStr); err == nil {
		cfg.JanitorInterval = d
	}
	if d, err := time.ParseDuration(cfg.JanitorOrphanThresholdStr); err == nil {
		cfg.JanitorOrphanThreshold = d
	}
	if d, err := time.ParseDuration(cfg.GateCooldownStr); err == nil {
		cfg.GateCooldown = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// intFromEnv reads a positive integer from the environment, falling back to
// def on absence or garbage.
func intFromEnv(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := parseInt(s)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s %q (must be a positive integer), using default %d", name, s, def)
		return def
	}
	return n
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string `json:"database_url"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		HTTPAddr                string `json:"http_addr"`
		OwnerID                 string `json:"owner_id"`
		ArtifactDir             string `json:"artifact_dir"`
		RecordTable             string `json:"record_table"`
		TickInterval            string `json:"tick_interval"`
		SchedulerBatchSize      int    `json:"scheduler_batch_size"`
		RunnerWorkers           int    `json:"runner_workers"`
		JobTimeout              string `json:"job_timeout"`
		RunnerDrainTimeout      string `json:"runner_drain_timeout"`
		BusBufferSize           int    `json:"bus_buffer_size"`
		RetentionInterval       string `json:"retention_interval"`
		RetentionBatchSize      int    `json:"retention_batch_size"`
		JanitorInterval         string `json:"janitor_interval"`
		JanitorOrphanThreshold  string `json:"janitor_orphan_threshold"`
		GateThreshold           int    `json:"gate_threshold"`
		GateCooldown            string `json:"gate_cooldown"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		LeaderElectionEnabled   bool   `json:"leader_election_enabled"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		OwnerID:                 c.OwnerID,
		ArtifactDir:             c.ArtifactDir,
		RecordTable:             c.RecordTable,
		TickInterval:            c.TickIntervalStr,
		SchedulerBatchSize:      c.SchedulerBatchSize,
		RunnerWorkers:           c.RunnerWorkers,
		JobTimeout:              c.JobTimeoutStr,
		RunnerDrainTimeout:      c.RunnerDrainTimeoutStr,
		BusBufferSize:           c.BusBufferSize,
		RetentionInterval:       c.RetentionIntervalStr,
		RetentionBatchSize:      c.RetentionBatchSize,
		JanitorInterval:         c.JanitorIntervalStr,
		JanitorOrphanThreshold:  c.JanitorOrphanThresholdStr,
		GateThreshold:           c.GateThreshold,
		GateCooldown:            c.GateCooldownStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		LeaderElectionEnabled:   c.LeaderElectionEnabled,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
