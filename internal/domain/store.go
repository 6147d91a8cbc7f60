package domain

import (
	"context"
	"time"
)

// AlertStore persists alert records across polling cycles. It is the only
// cross-cycle shared mutable state in the pipeline; all access happens inside
// the dedup/emit stages of a single cycle, serialized by the no-overlap rule,
// so implementations need no locking beyond their own connection safety.
//
// Persistence errors must be returned to the caller, never swallowed: losing
// this state causes duplicate alerts.
type AlertStore interface {
	// Contains reports whether the listing has already been alerted for the
	// given query.
	Contains(ctx context.Context, query string, source Source, listingID string) (bool, error)
	// Put records an alert. Recording an already-present record is a no-op,
	// not an error.
	Put(ctx context.Context, rec AlertRecord) error
	// Scan returns the alert records for a query, most recent first.
	Scan(ctx context.Context, query string, limit int) ([]AlertRecord, error)
	// ListBefore returns all records alerted strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]AlertRecord, error)
}

// SnapshotCache exposes the latest cycle result per query as a read-only view
// for the presentation layer. The pipeline is the only writer.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap CycleSnapshot) error
	GetSnapshot(ctx context.Context, query string) (CycleSnapshot, error)
}

// RateLimiter provides distributed rate limiting for the read API.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// CycleSnapshot is the published result of one completed cycle.
type CycleSnapshot struct {
	Query       string      `json:"query"`
	Listings    []Listing   `json:"listings"`
	Stats       *PriceStats `json:"stats,omitempty"`
	Skipped     bool        `json:"skipped"`
	CompletedAt time.Time   `json:"completed_at"`
}
