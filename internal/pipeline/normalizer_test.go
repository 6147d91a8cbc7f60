package pipeline

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeDerivesIDs(t *testing.T) {
	n := NewNormalizer(testLogger())
	now := time.Now().UTC()

	raw := []domain.RawListing{
		{Source: domain.SourceEbay, NativeID: "334455", Title: "Camera", RawPrice: "£120", URL: "https://www.ebay.co.uk/itm/334455", FetchedAt: now},
		{Source: domain.SourceFacebook, Title: "Camera", RawPrice: "£110", URL: "https://www.facebook.com/marketplace/item/99", FetchedAt: now},
	}

	got := n.Normalize(raw)
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2", len(got))
	}
	if got[0].ID != "ebay:334455" {
		t.Errorf("ID = %q; want ebay:334455", got[0].ID)
	}
	if !strings.HasPrefix(got[1].ID, "facebook_marketplace:url:") {
		t.Errorf("ID = %q; want URL-derived fallback id", got[1].ID)
	}
}

func TestNormalizeURLFallbackIsStable(t *testing.T) {
	n := NewNormalizer(testLogger())
	r := domain.RawListing{
		Source:   domain.SourceFacebook,
		Title:    "Bike",
		RawPrice: "£60",
		URL:      "https://www.facebook.com/marketplace/item/42",
	}

	a := n.Normalize([]domain.RawListing{r})
	b := n.Normalize([]domain.RawListing{r})
	if a[0].ID != b[0].ID {
		t.Errorf("URL-derived id not stable: %q vs %q", a[0].ID, b[0].ID)
	}
}

func TestNormalizeKeepsUnparsableAsUnpriced(t *testing.T) {
	n := NewNormalizer(testLogger())

	got := n.Normalize([]domain.RawListing{
		{Source: domain.SourceFacebook, Title: "Mystery box", RawPrice: "Free", URL: "https://example.com/1"},
	})
	if len(got) != 1 {
		t.Fatalf("len = %d; want 1 (unparsable price must not drop the listing)", len(got))
	}
	if got[0].Priced() {
		t.Errorf("listing is priced; want unpriced")
	}
	if got[0].RawPrice != "Free" {
		t.Errorf("RawPrice = %q; want original text kept for diagnostics", got[0].RawPrice)
	}
}

func TestNormalizeDropsMissingURL(t *testing.T) {
	n := NewNormalizer(testLogger())

	got := n.Normalize([]domain.RawListing{
		{Source: domain.SourceEbay, Title: "No link", RawPrice: "£10"},
		{Source: domain.SourceEbay, NativeID: "1", Title: "Ok", RawPrice: "£10", URL: "https://www.ebay.co.uk/itm/1"},
	})
	if len(got) != 1 {
		t.Errorf("len = %d; want 1 (listing without URL dropped)", len(got))
	}
}

func TestNormalizeCollapsesTitleWhitespace(t *testing.T) {
	n := NewNormalizer(testLogger())

	got := n.Normalize([]domain.RawListing{
		{Source: domain.SourceEbay, NativeID: "1", Title: "  Nikon\n D3500   body ", RawPrice: "£200", URL: "https://www.ebay.co.uk/itm/1"},
	})
	if got[0].Title != "Nikon D3500 body" {
		t.Errorf("Title = %q; want %q", got[0].Title, "Nikon D3500 body")
	}
}
