// Package analytics records run outcomes as time-bucketed Redis counters.
// Best-effort only: a Redis outage never affects job correctness.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/recordly/exportd/internal/domain"
)

// DefaultRetention bounds how long a counter bucket survives.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		window:    time.Hour,
		retention: DefaultRetention,
	}
}

// WithWindow sets the counter bucket width.
func (s *RedisSink) WithWindow(window time.Duration) *RedisSink {
	s.window = window
	return s
}

// WithRetention sets the bucket TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	s.retention = retention
	return s
}

// Record increments the outcome counter for one finished run. Failures are
// logged and swallowed; the caller has already committed the job state.
func (s *RedisSink) Record(ctx context.Context, scheduleID uuid.UUID, format domain.Format, success bool, at time.Time) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	key := buildKey(scheduleID.String(), string(format), outcome, at, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

// Counts returns the per-bucket outcome counters for a schedule over the
// given range, keyed by bucket label.
func (s *RedisSink) Counts(ctx context.Context, scheduleID uuid.UUID, format domain.Format, outcome string, from, to time.Time) (map[string]int64, error) {
	out := make(map[string]int64)
	for t := from.UTC().Truncate(s.window); !t.After(to); t = t.Add(s.window) {
		key := buildKey(scheduleID.String(), string(format), outcome, t, s.window)
		n, err := s.client.Get(ctx, key).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		out[bucketLabel(t, s.window)] = n
	}
	return out, nil
}

func buildKey(scheduleID, format, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("exportd:s:%s:%s:%s:%s", scheduleID, format, outcome, bucketLabel(t, window))
}

func bucketLabel(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case time.Hour:
		return t.Format("2006010215")
	case 24 * time.Hour:
		return t.Format("20060102")
	default:
		return t.Format("2006010215")
	}
}
