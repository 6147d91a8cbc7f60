package domain

// PriceStats is the robust central price estimate computed over a working
// set's parsed prices. Mean is in minor units. TrimmedLow and TrimmedHigh
// report how many samples each tail lost to trimming.
type PriceStats struct {
	Mean        float64 `json:"mean"`
	SampleCount int     `json:"sample_count"`
	TrimmedLow  int     `json:"trimmed_low"`
	TrimmedHigh int     `json:"trimmed_high"`
}

// DealThreshold returns the price at or below which a listing qualifies as a
// deal for the given threshold fraction.
func (s PriceStats) DealThreshold(thresholdFraction float64) float64 {
	return s.Mean * (1 - thresholdFraction)
}
