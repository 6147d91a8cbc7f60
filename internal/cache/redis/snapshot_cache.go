package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using Redis string values.
// Each query's latest cycle result is stored as JSON at "snapshot:{query}".
// Entries carry a TTL so a query whose monitoring stops eventually drops out
// of the view.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client. A
// zero ttl keeps snapshots forever.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(query string) string {
	return "snapshot:" + query
}

// SetSnapshot stores the latest cycle result for a query.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.CycleSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %q: %w", snap.Query, err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(snap.Query), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %q: %w", snap.Query, err)
	}
	return nil
}

// GetSnapshot retrieves the latest cycle result for a query. It returns
// domain.ErrNotFound when no snapshot has been published yet.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context, query string) (domain.CycleSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CycleSnapshot{}, domain.ErrNotFound
		}
		return domain.CycleSnapshot{}, fmt.Errorf("redis: get snapshot %q: %w", query, err)
	}

	var snap domain.CycleSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.CycleSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %q: %w", query, err)
	}
	return snap, nil
}
