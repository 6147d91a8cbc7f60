package pipeline

import (
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// Aggregate collects listings into a deduplicated working set. When two
// records share an ID the one with the latest ObservedAt wins; ties keep the
// record seen later in the input. Membership of the result is independent of
// input order. No cross-source fuzzy matching is attempted: visually
// identical listings on different marketplaces stay distinct.
func Aggregate(query string, listings []domain.Listing) domain.WorkingSet {
	ws := domain.WorkingSet{
		Query:    query,
		Listings: make(map[string]domain.Listing, len(listings)),
		BuiltAt:  time.Now().UTC(),
	}

	for _, l := range listings {
		existing, ok := ws.Listings[l.ID]
		if ok && existing.ObservedAt.After(l.ObservedAt) {
			continue
		}
		ws.Listings[l.ID] = l
	}

	return ws
}
