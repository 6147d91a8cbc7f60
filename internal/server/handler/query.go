package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// SnapshotReader provides read access to the latest cycle results.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, query string) (domain.CycleSnapshot, error)
}

// AlertReader provides read access to the alert history.
type AlertReader interface {
	Scan(ctx context.Context, query string, limit int) ([]domain.AlertRecord, error)
}

// QueryInfo describes one tracked query and its deal parameters, as exposed
// by the API.
type QueryInfo struct {
	Query             string  `json:"query"`
	ThresholdFraction float64 `json:"threshold_fraction"`
	TrimFraction      float64 `json:"trim_fraction"`
	MinSamples        int     `json:"min_samples"`
}

// QueryHandler serves the per-query read endpoints: the configured queries,
// the latest working set and stats, and the alert history.
type QueryHandler struct {
	queries   []QueryInfo
	snapshots SnapshotReader
	alerts    AlertReader
	logger    *slog.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(queries []QueryInfo, snapshots SnapshotReader, alerts AlertReader, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		queries:   queries,
		snapshots: snapshots,
		alerts:    alerts,
		logger:    logger,
	}
}

// known reports whether a query is in the configured set.
func (h *QueryHandler) known(query string) bool {
	for _, q := range h.queries {
		if q.Query == query {
			return true
		}
	}
	return false
}

// ListQueries returns the configured queries and their parameters.
// GET /api/queries
func (h *QueryHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	queries := h.queries
	if queries == nil {
		queries = []QueryInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

// GetListings returns the latest working set for a query.
// GET /api/queries/{query}/listings
func (h *QueryHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	if !h.known(query) {
		writeError(w, http.StatusNotFound, "unknown query")
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cycle has completed for this query yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get snapshot failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}

	listings := snap.Listings
	if listings == nil {
		listings = []domain.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":        query,
		"listings":     listings,
		"completed_at": snap.CompletedAt,
	})
}

// GetStats returns the latest price statistics for a query. A cycle that was
// skipped for insufficient data yields a response with null stats.
// GET /api/queries/{query}/stats
func (h *QueryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	if !h.known(query) {
		writeError(w, http.StatusNotFound, "unknown query")
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cycle has completed for this query yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get snapshot failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":        query,
		"stats":        snap.Stats,
		"skipped":      snap.Skipped,
		"completed_at": snap.CompletedAt,
	})
}

// GetAlerts returns the alert history for a query, most recent first.
// GET /api/queries/{query}/alerts?limit=50
func (h *QueryHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	if !h.known(query) {
		writeError(w, http.StatusNotFound, "unknown query")
		return
	}

	limit := parseLimit(r, 50, 500)

	records, err := h.alerts.Scan(r.Context(), query, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: scan alerts failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	if records == nil {
		records = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":  query,
		"alerts": records,
	})
}
