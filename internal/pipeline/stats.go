package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// ComputeStats computes a trimmed-mean price estimate over the working set's
// parsed prices. trimFraction of samples is discarded from each tail to
// reduce sensitivity to mispriced or bundle listings; when the post-trim
// sample would fall below minSamples the untrimmed mean is used instead.
// A working set with no parsed prices yields domain.ErrInsufficientData.
func ComputeStats(ws domain.WorkingSet, trimFraction float64, minSamples int) (domain.PriceStats, error) {
	priced := ws.PricedListings()
	if len(priced) == 0 {
		return domain.PriceStats{}, fmt.Errorf("stats: query %q has no priced listings: %w",
			ws.Query, domain.ErrInsufficientData)
	}

	prices := make([]int64, 0, len(priced))
	for _, l := range priced {
		prices = append(prices, *l.Price)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	// Trimming engages only when the sample is large enough to survive it:
	// below minSamples the untrimmed mean is the best available estimate.
	trim := int(math.Ceil(float64(len(prices)) * trimFraction))
	trimmed := prices
	trimmedLow, trimmedHigh := 0, 0
	if trim > 0 && len(prices) >= minSamples && len(prices)-2*trim >= 1 {
		trimmed = prices[trim : len(prices)-trim]
		trimmedLow, trimmedHigh = trim, trim
	}

	var sum int64
	for _, p := range trimmed {
		sum += p
	}

	return domain.PriceStats{
		Mean:        float64(sum) / float64(len(trimmed)),
		SampleCount: len(trimmed),
		TrimmedLow:  trimmedLow,
		TrimmedHigh: trimmedHigh,
	}, nil
}
