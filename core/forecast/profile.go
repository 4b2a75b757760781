package forecast

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Thresholds a mean daily profile must pass before it is trusted.
const (
	minProfilePeakWm2   = 5.0
	minProfileSpreadWm2 = 1.0
)

// HourlyProfile averages samples by UTC hour of day. Hours without samples
// read zero.
func HourlyProfile(points []IrradiancePoint) []float64 {
	sum := make([]float64, 24)
	count := make([]float64, 24)
	for _, p := range points {
		h := p.Time.UTC().Hour()
		sum[h] += p.GHIWm2
		count[h]++
	}
	for h := range sum {
		if count[h] > 0 {
			sum[h] /= count[h]
		}
	}
	return sum
}

// ValidProfile rejects flat or empty profiles, which usually mean the source
// returned fill values.
func ValidProfile(profile []float64) bool {
	if len(profile) != 24 {
		return false
	}
	peak := floats.Max(profile)
	return floats.Sum(profile) > 0 && peak >= minProfilePeakWm2 && peak-floats.Min(profile) >= minProfileSpreadWm2
}

// TileProfile repeats a 24 hour profile hourly from start for the given
// number of hours.
func TileProfile(profile []float64, start time.Time, hours int) []IrradiancePoint {
	out := make([]IrradiancePoint, 0, max(0, hours))
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).UTC()
		out = append(out, IrradiancePoint{Time: ts, GHIWm2: profile[ts.Hour()]})
	}
	return out
}
