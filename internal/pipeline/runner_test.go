package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// trackingFetcher counts concurrent Fetch calls so tests can assert that
// cycles for a single query run strictly one after another.
type trackingFetcher struct {
	mu      sync.Mutex
	active  int
	calls   int
	overlap bool
	delay   time.Duration
	raw     []domain.RawListing
}

func (f *trackingFetcher) Name() domain.Source { return domain.SourceEbay }

func (f *trackingFetcher) Fetch(ctx context.Context, query string) ([]domain.RawListing, error) {
	f.mu.Lock()
	f.active++
	f.calls++
	if f.active > 1 {
		f.overlap = true
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.raw, nil
}

func (f *trackingFetcher) snapshot() (calls int, overlap bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.overlap
}

// failOnceStore rejects the first Put and then behaves like memAlertStore.
type failOnceStore struct {
	*memAlertStore
	tripped atomic.Bool
}

func (s *failOnceStore) Put(ctx context.Context, rec domain.AlertRecord) error {
	if s.tripped.CompareAndSwap(false, true) {
		return errors.New("store unavailable")
	}
	return s.memAlertStore.Put(ctx, rec)
}

func TestRunnerCyclesNeverOverlap(t *testing.T) {
	fetcher := &trackingFetcher{
		delay: 30 * time.Millisecond,
		raw: []domain.RawListing{
			rawListing("1", "£40"),
			rawListing("2", "£100"),
			rawListing("3", "£105"),
			rawListing("4", "£1,000"),
		},
	}
	p := New([]SourceFetcher{fetcher}, newMemAlertStore(), nil, &captureSink{}, testLogger())
	r := NewRunner(p, []QueryConfig{queryConfig()}, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want context deadline", err)
	}

	calls, overlap := fetcher.snapshot()
	if calls < 2 {
		t.Fatalf("fetcher called %d times; want at least 2 cycles", calls)
	}
	if overlap {
		t.Fatal("cycles for one query ran concurrently; want strictly sequential")
	}
}

func TestRunnerRetriesAfterCycleError(t *testing.T) {
	fetcher := &fakeFetcher{source: domain.SourceEbay, raw: []domain.RawListing{
		rawListing("1", "£40"),
		rawListing("2", "£100"),
		rawListing("3", "£105"),
		rawListing("4", "£1,000"),
	}}
	store := &failOnceStore{memAlertStore: newMemAlertStore()}
	sink := &captureSink{}
	p := New([]SourceFetcher{fetcher}, store, nil, sink, testLogger())
	r := NewRunner(p, []QueryConfig{queryConfig()}, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	key := alertKey("nikon d3500", domain.SourceEbay, "ebay:1")
	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		_, recorded := store.recs[key]
		store.mu.Unlock()
		if recorded {
			break
		}
		select {
		case <-deadline:
			t.Fatal("deal never recorded; loop did not survive the failed cycle")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v; want context canceled", err)
	}

	if !store.tripped.Load() {
		t.Fatal("first Put never failed; test did not exercise the retry path")
	}
	sink.mu.Lock()
	sent := len(sink.sent)
	sink.mu.Unlock()
	if sent == 0 {
		t.Fatal("deal never emitted after the failed cycle")
	}
}

func TestRunnerRequiresQueries(t *testing.T) {
	p := New(nil, newMemAlertStore(), nil, &captureSink{}, testLogger())
	r := NewRunner(p, nil, time.Second, testLogger())
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run with no queries = nil; want error")
	}
}
