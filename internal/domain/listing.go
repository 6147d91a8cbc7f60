package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Source identifies the marketplace a listing was observed on.
type Source string

const (
	SourceEbay     Source = "ebay"
	SourceFacebook Source = "facebook_marketplace"
)

// RawListing is a listing payload as delivered by a source collector, before
// normalization. Any field except URL may be missing or malformed.
type RawListing struct {
	Source    Source
	NativeID  string // source-native item id; may be empty
	Title     string
	RawPrice  string // price text exactly as scraped
	URL       string
	FetchedAt time.Time
}

// Listing is one normalized marketplace item observation.
type Listing struct {
	// ID is "<source>:<native id>", or URL-derived when no native id exists.
	ID     string `json:"id"`
	Source Source `json:"source"`
	Title  string `json:"title"`
	// RawPrice is the price text exactly as scraped.
	RawPrice string `json:"raw_price,omitempty"`
	// Price is in minor units (e.g. cents); nil when the raw price could
	// not be parsed.
	Price      *int64    `json:"price,omitempty"`
	Currency   string    `json:"currency,omitempty"` // ISO 4217 code
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
}

// Priced reports whether the listing carries a successfully parsed price.
// Unpriced listings never participate in statistics or deal evaluation.
func (l Listing) Priced() bool {
	return l.Price != nil
}

// ListingID builds the stable de-duplication identifier for a listing. When
// the source supplied no native item id, the URL is hashed instead so the
// same listing still maps to the same id across cycles.
func ListingID(source Source, nativeID, url string) string {
	if nativeID != "" {
		return string(source) + ":" + nativeID
	}
	sum := sha1.Sum([]byte(url))
	return string(source) + ":url:" + hex.EncodeToString(sum[:8])
}

// WorkingSet is the deduplicated collection of listings for one query within
// one cycle. At most one listing per ID survives aggregation.
type WorkingSet struct {
	Query    string
	Listings map[string]Listing
	BuiltAt  time.Time
}

// Size returns the number of listings in the working set.
func (ws WorkingSet) Size() int {
	return len(ws.Listings)
}

// PricedListings returns the subset of listings with a parsed price.
func (ws WorkingSet) PricedListings() []Listing {
	out := make([]Listing, 0, len(ws.Listings))
	for _, l := range ws.Listings {
		if l.Priced() {
			out = append(out, l)
		}
	}
	return out
}
