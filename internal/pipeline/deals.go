package pipeline

import (
	"sort"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// FilterDeals returns the listings priced at or below
// mean * (1 - thresholdFraction), cheapest first so the most attractive
// alerts land downstream first. The boundary is inclusive. Listings without
// a parsed price never qualify.
func FilterDeals(ws domain.WorkingSet, stats domain.PriceStats, thresholdFraction float64) []domain.Listing {
	cutoff := stats.DealThreshold(thresholdFraction)

	deals := make([]domain.Listing, 0)
	for _, l := range ws.Listings {
		if !l.Priced() {
			continue
		}
		if float64(*l.Price) <= cutoff {
			deals = append(deals, l)
		}
	}

	sort.Slice(deals, func(i, j int) bool {
		if *deals[i].Price != *deals[j].Price {
			return *deals[i].Price < *deals[j].Price
		}
		return deals[i].ID < deals[j].ID
	})

	return deals
}
