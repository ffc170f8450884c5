package models

// ConversionRate is conversions as a percentage of leads; zero when there are no leads
func ConversionRate(leads, conversions int64) float64 {
	if leads <= 0 {
		return 0
	}
	return float64(conversions) / float64(leads) * 100
}

// GrowthRate is the percentage change from previous to recent; zero when previous is zero
func GrowthRate(recent, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(recent-previous) / float64(previous) * 100
}
