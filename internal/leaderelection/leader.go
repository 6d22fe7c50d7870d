// Package leaderelection elects a single exportd instance to run the
// background loops (scheduler, retention reaper, janitor) using a
// Postgres advisory lock.
//
// The lock is session-scoped and held for the lifetime of a dedicated
// database connection; there is no renewal or TTL. If the connection
// dies, Postgres releases the lock server-side (timing depends on TCP
// keepalive settings). The heartbeat ping only detects local connection
// death so the leader can stop its duties promptly.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// MetricsSink records leader election state changes. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string) // reason: "shutdown", "conn_lost", "error"
}

// Callbacks are invoked on leadership transitions.
type Callbacks struct {
	// OnElected is called in a new goroutine when this instance acquires
	// the lock. The context is cancelled when leadership is lost. It
	// should start the leader-only loops and return quickly.
	OnElected func(ctx context.Context)

	// OnDemoted is called synchronously when leadership is lost. It must
	// stop the leader-only loops, block until they are fully stopped, and
	// be safe to call more than once.
	OnDemoted func()
}

// Elector competes for a Postgres advisory lock and runs the leader-only
// loops while holding it.
type Elector struct {
	db                *sql.DB
	lockKey           int64
	retryInterval     time.Duration // follower: how often to attempt acquisition
	heartbeatInterval time.Duration // leader: how often to ping the held connection
	callbacks         Callbacks
	metrics           MetricsSink // optional, nil = disabled
}

// New creates an Elector competing for lockKey.
func New(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration, cb Callbacks) *Elector {
	return &Elector{
		db:                db,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		callbacks:         cb,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run starts the election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: starting election loop (lock_key=%d, retry=%s, heartbeat=%s)",
		e.lockKey, e.retryInterval, e.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		select {
		case <-ctx.Done():
			log.Println("leader: election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce attempts to acquire the advisory lock and hold it.
// Returns the reason leadership was lost ("" if the lock was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	// Advisory locks are session-scoped: a dedicated connection is required.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		log.Printf("leader: failed to acquire dedicated connection: %v", err)
		return ""
	}
	defer conn.Close()

	var acquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.lockKey).Scan(&acquired)
	if err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: lock %d held by another instance, retrying in %s", e.lockKey, e.retryInterval)
		return ""
	}

	log.Printf("leader: acquired advisory lock %d", e.lockKey)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)

	go e.callbacks.OnElected(leaderCtx)

	// The ping detects local connection death; it does not renew the lock.
	reason := e.holdLock(ctx, conn)

	cancelLeader()
	e.callbacks.OnDemoted()

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: released advisory lock %d", e.lockKey)
	return reason
}

// holdLock blocks while pinging the dedicated connection.
// Returns the reason the lock was lost.
func (e *Elector) holdLock(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: dedicated connection ping failed: %v", err)
				return "conn_lost"
			}
		}
	}
}
