package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Contains reports whether the listing has already been alerted for the
// given query.
func (s *AlertStore) Contains(ctx context.Context, query string, source domain.Source, listingID string) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM alert_records
			WHERE query = $1 AND source = $2 AND listing_id = $3
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, q, query, string(source), listingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: check alert %s/%s: %w", query, listingID, err)
	}
	return exists, nil
}

// Put records an alert. The primary key makes re-recording an existing
// (query, source, listing) a no-op rather than an error.
func (s *AlertStore) Put(ctx context.Context, rec domain.AlertRecord) error {
	const q = `
		INSERT INTO alert_records (query, source, listing_id, price_at_alert, alerted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (query, source, listing_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		rec.Query, string(rec.Source), rec.ListingID, rec.PriceAtAlert, rec.AlertedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put alert %s/%s: %w", rec.Query, rec.ListingID, err)
	}
	return nil
}

// Scan returns the alert records for a query, most recent first.
func (s *AlertStore) Scan(ctx context.Context, query string, limit int) ([]domain.AlertRecord, error) {
	const q = `
		SELECT query, source, listing_id, price_at_alert, alerted_at
		FROM alert_records
		WHERE query = $1
		ORDER BY alerted_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts for %q: %w", query, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListBefore returns all records alerted strictly before the cutoff, for
// archival.
func (s *AlertStore) ListBefore(ctx context.Context, before time.Time) ([]domain.AlertRecord, error) {
	const q = `
		SELECT query, source, listing_id, price_at_alert, alerted_at
		FROM alert_records
		WHERE alerted_at < $1
		ORDER BY alerted_at`

	rows, err := s.pool.Query(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts before %s: %w", before, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]domain.AlertRecord, error) {
	var out []domain.AlertRecord
	for rows.Next() {
		var rec domain.AlertRecord
		var source string
		if err := rows.Scan(&rec.Query, &source, &rec.ListingID, &rec.PriceAtAlert, &rec.AlertedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert row: %w", err)
		}
		rec.Source = domain.Source(source)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate alert rows: %w", err)
	}
	return out, nil
}
