package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// SourceFetcher retrieves raw listings for a query from one marketplace.
// Implementations live outside the pipeline; the pipeline consumes only the
// uniform sequence they return.
type SourceFetcher interface {
	// Name returns the marketplace this fetcher collects from.
	Name() domain.Source
	// Fetch returns the raw listings currently visible for the query. It
	// must honour ctx cancellation; the pipeline bounds it with the
	// per-source timeout.
	Fetch(ctx context.Context, query string) ([]domain.RawListing, error)
}

// AlertSink delivers a qualified deal to the downstream notifier.
type AlertSink interface {
	SendDeal(ctx context.Context, alert domain.DealAlert) error
}

// State is a stage of the per-cycle state machine.
type State string

const (
	StateFetching      State = "FETCHING"
	StateNormalizing   State = "NORMALIZING"
	StateAggregating   State = "AGGREGATING"
	StateComputingStat State = "COMPUTING_STATS"
	StateFiltering     State = "FILTERING"
	StateDeduping      State = "DEDUPING"
	StateEmitting      State = "EMITTING"
	StateDone          State = "DONE"
	StateSkipped       State = "SKIPPED"
)

// QueryConfig carries the per-query tuning knobs consumed by one cycle.
type QueryConfig struct {
	Query             string
	ThresholdFraction float64
	TrimFraction      float64
	MinSamples        int
	SourceTimeout     time.Duration
}

// CycleResult summarizes one completed cycle.
type CycleResult struct {
	ID         string
	State      State // DONE or SKIPPED
	WorkingSet domain.WorkingSet
	Stats      *domain.PriceStats
	Emitted    []domain.Listing
	Unpriced   int
}

// Pipeline drives one polling cycle for a query:
// fetch → normalize → aggregate → compute stats → filter → dedup → emit.
// Source fetches run concurrently; every later stage is single-threaded over
// the merged results.
type Pipeline struct {
	fetchers   []SourceFetcher
	normalizer *Normalizer
	alerts     domain.AlertStore
	snapshots  domain.SnapshotCache
	sink       AlertSink
	logger     *slog.Logger
}

// New creates a Pipeline. snapshots and sink may be nil (headless runs and
// tests); alerts must not be.
func New(
	fetchers []SourceFetcher,
	alerts domain.AlertStore,
	snapshots domain.SnapshotCache,
	sink AlertSink,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		fetchers:   fetchers,
		normalizer: NewNormalizer(logger),
		alerts:     alerts,
		snapshots:  snapshots,
		sink:       sink,
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// RunCycle executes one full cycle for the query. A source failure or
// timeout contributes an empty listing set; only an alert-store persistence
// failure aborts the cycle with an error, since losing that state risks
// duplicate alerts. The cycle result is published to the snapshot cache on
// both DONE and SKIPPED.
func (p *Pipeline) RunCycle(ctx context.Context, cfg QueryConfig) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString()}
	log := p.logger.With(
		slog.String("cycle_id", res.ID),
		slog.String("query", cfg.Query),
	)

	// FETCHING: concurrent fan-in across sources, each bounded by the
	// per-source timeout so one slow marketplace cannot stall the cycle.
	p.transition(log, StateFetching)
	raw := p.fetchAll(ctx, cfg, log)

	// NORMALIZING
	p.transition(log, StateNormalizing)
	listings := p.normalizer.Normalize(raw)
	for _, l := range listings {
		if !l.Priced() {
			res.Unpriced++
		}
	}

	// AGGREGATING
	p.transition(log, StateAggregating)
	res.WorkingSet = Aggregate(cfg.Query, listings)

	// COMPUTING_STATS
	p.transition(log, StateComputingStat)
	stats, err := ComputeStats(res.WorkingSet, cfg.TrimFraction, cfg.MinSamples)
	if err != nil {
		p.transition(log, StateSkipped)
		res.State = StateSkipped
		log.Info("cycle skipped",
			slog.Int("working_set_size", res.WorkingSet.Size()),
			slog.String("reason", err.Error()),
		)
		p.publish(ctx, res, log)
		return res, nil
	}
	res.Stats = &stats

	// FILTERING
	p.transition(log, StateFiltering)
	deals := FilterDeals(res.WorkingSet, stats, cfg.ThresholdFraction)

	// DEDUPING
	p.transition(log, StateDeduping)
	fresh, err := p.filterUnalerted(ctx, cfg.Query, deals)
	if err != nil {
		return res, fmt.Errorf("pipeline: dedup check: %w", err)
	}

	// EMITTING
	p.transition(log, StateEmitting)
	if err := p.emit(ctx, cfg.Query, fresh, stats, &res, log); err != nil {
		return res, err
	}

	p.transition(log, StateDone)
	res.State = StateDone
	log.Info("cycle complete",
		slog.Int("working_set_size", res.WorkingSet.Size()),
		slog.Int("unpriced", res.Unpriced),
		slog.Int("deals", len(deals)),
		slog.Int("emitted", len(res.Emitted)),
		slog.Float64("mean_minor_units", stats.Mean),
	)
	p.publish(ctx, res, log)
	return res, nil
}

// fetchAll runs all source fetchers concurrently and merges their results.
// A failed or timed-out source contributes an empty set.
func (p *Pipeline) fetchAll(ctx context.Context, cfg QueryConfig, log *slog.Logger) []domain.RawListing {
	var (
		mu     sync.Mutex
		merged []domain.RawListing
		wg     sync.WaitGroup
	)

	for _, f := range p.fetchers {
		wg.Add(1)
		go func(f SourceFetcher) {
			defer wg.Done()

			fetchCtx := ctx
			if cfg.SourceTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, cfg.SourceTimeout)
				defer cancel()
			}

			raw, err := f.Fetch(fetchCtx, cfg.Query)
			if err != nil {
				log.Warn("source fetch failed, contributing empty set",
					slog.String("source", string(f.Name())),
					slog.String("error", err.Error()),
				)
				return
			}

			mu.Lock()
			merged = append(merged, raw...)
			mu.Unlock()
		}(f)
	}

	wg.Wait()
	return merged
}

// filterUnalerted suppresses deals whose id is already present in the alert
// store for this query.
func (p *Pipeline) filterUnalerted(ctx context.Context, query string, deals []domain.Listing) ([]domain.Listing, error) {
	fresh := make([]domain.Listing, 0, len(deals))
	for _, d := range deals {
		seen, err := p.alerts.Contains(ctx, query, d.Source, d.ID)
		if err != nil {
			return nil, err
		}
		if !seen {
			fresh = append(fresh, d)
		}
	}
	return fresh, nil
}

// emit delivers fresh deals in order and records each delivery. A sink
// failure leaves the deal unrecorded so it re-qualifies next cycle; a store
// failure aborts the cycle since the alert may now double-fire.
func (p *Pipeline) emit(ctx context.Context, query string, fresh []domain.Listing, stats domain.PriceStats, res *CycleResult, log *slog.Logger) error {
	for _, d := range fresh {
		if p.sink != nil {
			if err := p.sink.SendDeal(ctx, domain.DealAlert{Listing: d, Stats: stats, Query: query}); err != nil {
				log.Error("deal delivery failed, will retry next cycle",
					slog.String("listing_id", d.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		rec := domain.AlertRecord{
			Query:        query,
			Source:       d.Source,
			ListingID:    d.ID,
			PriceAtAlert: *d.Price,
			AlertedAt:    time.Now().UTC(),
		}
		if err := p.alerts.Put(ctx, rec); err != nil {
			return fmt.Errorf("pipeline: record alert %s: %w", d.ID, err)
		}
		res.Emitted = append(res.Emitted, d)
	}
	return nil
}

// publish pushes the cycle result to the snapshot cache for the read-only
// presentation view. Cache failures degrade the view only, never the cycle.
func (p *Pipeline) publish(ctx context.Context, res CycleResult, log *slog.Logger) {
	if p.snapshots == nil {
		return
	}

	listings := make([]domain.Listing, 0, res.WorkingSet.Size())
	for _, l := range res.WorkingSet.Listings {
		listings = append(listings, l)
	}

	snap := domain.CycleSnapshot{
		Query:       res.WorkingSet.Query,
		Listings:    listings,
		Stats:       res.Stats,
		Skipped:     res.State == StateSkipped,
		CompletedAt: time.Now().UTC(),
	}
	if err := p.snapshots.SetSnapshot(ctx, snap); err != nil {
		log.Warn("snapshot publish failed", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) transition(log *slog.Logger, s State) {
	log.Debug("state transition", slog.String("state", string(s)))
}
