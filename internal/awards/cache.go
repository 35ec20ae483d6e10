package awards

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is a cached rendering of all three leaderboards for one
// completed-occurrence set.
type Snapshot struct {
	GeneratedAt    time.Time          `json:"generated_at"`
	CompletedCount int                `json:"completed_count"`
	Boards         map[Metric][]Entry `json:"boards"`
}

// BuildSnapshot renders every board from an engine.
func BuildSnapshot(e *Engine, limit int, at time.Time) Snapshot {
	return Snapshot{
		GeneratedAt:    at,
		CompletedCount: len(e.completedIDs),
		Boards: map[Metric][]Entry{
			MetricStreak: e.Leaderboard(MetricStreak, limit),
			MetricScore:  e.Leaderboard(MetricScore, limit),
			MetricTime:   e.Leaderboard(MetricTime, limit),
		},
	}
}

// Cache stores the latest leaderboard snapshot in Redis so the kiosk display
// does not replay the whole event log on every poll. A short TTL bounds
// staleness; a miss just recomputes, so correctness never depends on it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

const snapshotKey = "kiosk:leaderboards:latest"

// NewCache creates a cache with the given freshness window.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, or false on miss or any Redis error.
// Cache trouble is never a request failure.
func (c *Cache) Get(ctx context.Context) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Set stores a snapshot. Errors are returned for logging but are safe to
// ignore.
func (c *Cache) Set(ctx context.Context, snap Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, data, c.ttl).Err()
}
