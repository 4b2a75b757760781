package forecast

import (
	"context"
	"time"
)

// DefaultPeakGHI is the clear-sky noon irradiance of the synthetic day.
const DefaultPeakGHI = 850.0

// Synthetic produces a bell-shaped daylight curve between 06:00 and 18:00.
type Synthetic struct {
	PeakGHIWm2 float64
}

func (Synthetic) Name() string { return "synthetic" }

// Irradiance never fails.
func (s Synthetic) Irradiance(_ context.Context, req Request) ([]IrradiancePoint, error) {
	return s.Points(req.Start, req.Hours, req.StepMinutes), nil
}

// Points samples the curve every stepMinutes from start.
func (s Synthetic) Points(start time.Time, hours, stepMinutes int) []IrradiancePoint {
	peak := s.PeakGHIWm2
	if peak <= 0 {
		peak = DefaultPeakGHI
	}
	stepMinutes = max(1, stepMinutes)
	n := hours * 60 / stepMinutes
	out := make([]IrradiancePoint, 0, max(0, n))
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i*stepMinutes) * time.Minute).UTC()
		hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
		var ghi float64
		if hour >= 6 && hour <= 18 {
			x := (hour - 6) / 12
			ghi = peak * 4 * x * (1 - x)
		}
		out = append(out, IrradiancePoint{Time: ts, GHIWm2: max(0, ghi)})
	}
	return out
}
