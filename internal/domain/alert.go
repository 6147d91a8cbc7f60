package domain

import "time"

// AlertRecord marks that a listing has already triggered a notification for a
// given query. Records are created once and never mutated; they exist only
// for membership checks and audit. De-duplication scope is query+source, so
// the same physical item tracked under two queries may alert twice.
type AlertRecord struct {
	Query        string    `json:"query"`
	Source       Source    `json:"source"`
	ListingID    string    `json:"listing_id"`
	PriceAtAlert int64     `json:"price_at_alert"` // minor units
	AlertedAt    time.Time `json:"alerted_at"`
}

// DealAlert is an outbound alert for a newly-qualifying listing, carrying
// enough context for human-readable presentation.
type DealAlert struct {
	Listing Listing
	Stats   PriceStats
	Query   string
}
