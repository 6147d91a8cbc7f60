package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// --- test fakes -----------------------------------------------------------

type fakeFetcher struct {
	source domain.Source
	raw    []domain.RawListing
	err    error
	delay  time.Duration
}

func (f *fakeFetcher) Name() domain.Source { return f.source }

func (f *fakeFetcher) Fetch(ctx context.Context, query string) ([]domain.RawListing, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

type memAlertStore struct {
	mu   sync.Mutex
	recs map[string]domain.AlertRecord
	fail error
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{recs: make(map[string]domain.AlertRecord)}
}

func alertKey(query string, source domain.Source, id string) string {
	return query + "|" + string(source) + "|" + id
}

func (s *memAlertStore) Contains(ctx context.Context, query string, source domain.Source, listingID string) (bool, error) {
	if s.fail != nil {
		return false, s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[alertKey(query, source, listingID)]
	return ok, nil
}

func (s *memAlertStore) Put(ctx context.Context, rec domain.AlertRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := alertKey(rec.Query, rec.Source, rec.ListingID)
	if _, ok := s.recs[key]; ok {
		return nil
	}
	s.recs[key] = rec
	return nil
}

func (s *memAlertStore) Scan(ctx context.Context, query string, limit int) ([]domain.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AlertRecord
	for _, r := range s.recs {
		if r.Query == query {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memAlertStore) ListBefore(ctx context.Context, before time.Time) ([]domain.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AlertRecord
	for _, r := range s.recs {
		if r.AlertedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

type captureSink struct {
	mu   sync.Mutex
	sent []domain.DealAlert
	fail error
}

func (c *captureSink) SendDeal(ctx context.Context, alert domain.DealAlert) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, alert)
	return nil
}

// --- tests ----------------------------------------------------------------

func rawListing(id, priceText string) domain.RawListing {
	return domain.RawListing{
		Source:    domain.SourceEbay,
		NativeID:  id,
		Title:     "item " + id,
		RawPrice:  priceText,
		URL:       "https://www.ebay.co.uk/itm/" + id,
		FetchedAt: time.Now().UTC(),
	}
}

func queryConfig() QueryConfig {
	return QueryConfig{
		Query:             "nikon d3500",
		ThresholdFraction: 0.15,
		TrimFraction:      0.10,
		MinSamples:        3,
		SourceTimeout:     time.Second,
	}
}

func TestCycleEndToEnd(t *testing.T) {
	healthy := &fakeFetcher{source: domain.SourceEbay, raw: []domain.RawListing{
		rawListing("1", "£40"),
		rawListing("2", "£100"),
		rawListing("3", "£105"),
		rawListing("4", "£1,000"),
		rawListing("5", "contact seller"),
	}}
	broken := &fakeFetcher{source: domain.SourceFacebook, err: errors.New("marketplace unreachable")}

	store := newMemAlertStore()
	sink := &captureSink{}
	p := New([]SourceFetcher{healthy, broken}, store, nil, sink, testLogger())

	res, err := p.RunCycle(context.Background(), queryConfig())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s; want DONE (one source failing must not abort)", res.State)
	}
	if res.WorkingSet.Size() != 5 {
		t.Errorf("working set size = %d; want 5", res.WorkingSet.Size())
	}
	if res.Unpriced != 1 {
		t.Errorf("Unpriced = %d; want 1", res.Unpriced)
	}

	// Trimmed mean over [4000,10000,10500,100000] minor units drops one
	// sample per tail: mean 10250, 15% threshold cutoff 8712.5. Only the
	// £40 listing qualifies.
	if len(res.Emitted) != 1 {
		t.Fatalf("emitted = %d deals; want 1", len(res.Emitted))
	}
	if res.Emitted[0].ID != "ebay:1" {
		t.Errorf("emitted %q; want ebay:1", res.Emitted[0].ID)
	}
	for _, d := range res.Emitted {
		if !d.Priced() {
			t.Errorf("unpriced listing %q emitted", d.ID)
		}
	}
	if len(sink.sent) != 1 {
		t.Errorf("sink received %d alerts; want 1", len(sink.sent))
	}

	// A second identical cycle emits nothing: everything already alerted.
	res2, err := p.RunCycle(context.Background(), queryConfig())
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if len(res2.Emitted) != 0 {
		t.Errorf("second cycle emitted %d deals; want 0", len(res2.Emitted))
	}
	if len(sink.sent) != 1 {
		t.Errorf("sink received %d alerts after second cycle; want still 1", len(sink.sent))
	}
}

func TestCycleAllSourcesFailSkips(t *testing.T) {
	fetchers := []SourceFetcher{
		&fakeFetcher{source: domain.SourceEbay, err: errors.New("boom")},
		&fakeFetcher{source: domain.SourceFacebook, err: errors.New("boom")},
	}
	p := New(fetchers, newMemAlertStore(), nil, &captureSink{}, testLogger())

	res, err := p.RunCycle(context.Background(), queryConfig())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v; want none", err)
	}
	if res.State != StateSkipped {
		t.Errorf("State = %s; want SKIPPED", res.State)
	}
	if res.WorkingSet.Size() != 0 {
		t.Errorf("working set size = %d; want 0", res.WorkingSet.Size())
	}
	if len(res.Emitted) != 0 {
		t.Errorf("emitted = %d; want 0", len(res.Emitted))
	}
}

func TestCycleSlowSourceTimesOut(t *testing.T) {
	slow := &fakeFetcher{
		source: domain.SourceFacebook,
		raw:    []domain.RawListing{rawListing("slow", "£10")},
		delay:  200 * time.Millisecond,
	}
	fast := &fakeFetcher{source: domain.SourceEbay, raw: []domain.RawListing{
		rawListing("1", "£90"),
		rawListing("2", "£100"),
		rawListing("3", "£110"),
	}}

	cfg := queryConfig()
	cfg.SourceTimeout = 20 * time.Millisecond

	p := New([]SourceFetcher{slow, fast}, newMemAlertStore(), nil, &captureSink{}, testLogger())
	res, err := p.RunCycle(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s; want DONE", res.State)
	}
	if res.WorkingSet.Size() != 3 {
		t.Errorf("working set size = %d; want 3 (slow source treated as failed)", res.WorkingSet.Size())
	}
}

func TestCycleDeliveryFailureLeavesDealUnrecorded(t *testing.T) {
	fetcher := &fakeFetcher{source: domain.SourceEbay, raw: []domain.RawListing{
		rawListing("1", "£10"),
		rawListing("2", "£100"),
		rawListing("3", "£105"),
		rawListing("4", "£110"),
	}}
	store := newMemAlertStore()
	sink := &captureSink{fail: errors.New("telegram down")}
	p := New([]SourceFetcher{fetcher}, store, nil, sink, testLogger())

	res, err := p.RunCycle(context.Background(), queryConfig())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Emitted) != 0 {
		t.Errorf("emitted = %d; want 0 when delivery fails", len(res.Emitted))
	}

	// Delivery recovers: the deal re-qualifies on the next cycle.
	sink.fail = nil
	res2, err := p.RunCycle(context.Background(), queryConfig())
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if len(res2.Emitted) != 1 {
		t.Errorf("second cycle emitted = %d; want 1", len(res2.Emitted))
	}
}

func TestCyclePersistenceFailureSurfaces(t *testing.T) {
	fetcher := &fakeFetcher{source: domain.SourceEbay, raw: []domain.RawListing{
		rawListing("1", "£10"),
		rawListing("2", "£100"),
		rawListing("3", "£105"),
		rawListing("4", "£110"),
	}}
	store := newMemAlertStore()
	store.fail = errors.New("disk full")
	p := New([]SourceFetcher{fetcher}, store, nil, &captureSink{}, testLogger())

	if _, err := p.RunCycle(context.Background(), queryConfig()); err == nil {
		t.Error("RunCycle succeeded; want persistence error surfaced")
	}
}

func TestRecordAlertedIsIdempotent(t *testing.T) {
	store := newMemAlertStore()
	rec := domain.AlertRecord{
		Query:        "q",
		Source:       domain.SourceEbay,
		ListingID:    "ebay:1",
		PriceAtAlert: 1000,
		AlertedAt:    time.Now().UTC(),
	}

	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	recs, err := store.Scan(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("Scan returned %d records; want exactly 1", len(recs))
	}
}
