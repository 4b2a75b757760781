package forecast

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by providers that answered without usable samples.
var ErrNoData = errors.New("no irradiance data")

// IrradiancePoint is a global horizontal irradiance sample.
type IrradiancePoint struct {
	Time   time.Time `json:"ts"`
	GHIWm2 float64   `json:"ghi_wm2"`
}

// Request describes the span a provider should cover.
type Request struct {
	Latitude    float64
	Longitude   float64
	Start       time.Time
	Hours       int
	StepMinutes int
}

// Provider returns irradiance for a location and time span. The sampling
// interval is up to the provider; callers resample.
type Provider interface {
	Name() string
	Irradiance(ctx context.Context, req Request) ([]IrradiancePoint, error)
}

// ToPVPowerKW converts irradiance to array output with the linear model
// capacity * GHI/1000 scaled by efficiency relative to a 0.18 reference panel.
func ToPVPowerKW(points []IrradiancePoint, capacityKW, efficiency float64) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = capacityKW * max(0, p.GHIWm2/1000.0) * (efficiency / 0.18)
	}
	return out
}
