package pipeline

import (
	"testing"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

func TestFilterDealsInclusiveBoundary(t *testing.T) {
	ws := workingSet(80, 81, 100)
	stats := domain.PriceStats{Mean: 100, SampleCount: 3}

	deals := FilterDeals(ws, stats, 0.2)
	if len(deals) != 1 {
		t.Fatalf("len(deals) = %d; want 1", len(deals))
	}
	if *deals[0].Price != 80 {
		t.Errorf("deal price = %d; want 80 (boundary is inclusive)", *deals[0].Price)
	}
}

func TestFilterDealsAscendingPriceOrder(t *testing.T) {
	ws := workingSet(50, 30, 70, 200)
	stats := domain.PriceStats{Mean: 200, SampleCount: 4}

	deals := FilterDeals(ws, stats, 0.5)
	want := []int64{30, 50, 70}
	if len(deals) != len(want) {
		t.Fatalf("len(deals) = %d; want %d", len(deals), len(want))
	}
	for i, w := range want {
		if *deals[i].Price != w {
			t.Errorf("deals[%d].Price = %d; want %d", i, *deals[i].Price, w)
		}
	}
}

func TestFilterDealsSkipsUnpricedListings(t *testing.T) {
	ws := workingSet(10)
	ws.Listings["raw"] = domain.Listing{ID: "raw", RawPrice: "contact seller"}
	stats := domain.PriceStats{Mean: 1000, SampleCount: 1}

	deals := FilterDeals(ws, stats, 0.1)
	if len(deals) != 1 {
		t.Errorf("len(deals) = %d; want 1 (unpriced never qualifies)", len(deals))
	}
}
