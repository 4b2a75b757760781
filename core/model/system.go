package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a RunConfig cannot describe a physical system.
var ErrInvalidConfig = errors.New("invalid system config")

// RunConfig describes the PV array, the battery bank and the simulation grid.
type RunConfig struct {
	LocationName string  `json:"location_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`

	PVCapacityKW float64 `json:"pv_capacity_kw"`
	PVEfficiency float64 `json:"pv_efficiency"`

	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	InverterMaxKW      float64 `json:"inverter_max_kw"`
	SoCInit            float64 `json:"soc_init"`
	SoCMin             float64 `json:"soc_min"`
	SoCMax             float64 `json:"soc_max"`
	ChargeEff          float64 `json:"charge_eff"`
	DischargeEff       float64 `json:"discharge_eff"`

	TimestepMinutes int `json:"timestep_minutes"`
	HorizonSteps    int `json:"forecast_horizon_steps"`
}

// DefaultRunConfig returns the reference household used by the demo commands.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		LocationName:       "Demo site",
		Latitude:           6.5244,
		Longitude:          3.3792,
		PVCapacityKW:       3,
		PVEfficiency:       0.18,
		BatteryCapacityKWh: 5,
		InverterMaxKW:      2,
		SoCInit:            0.7,
		SoCMin:             0.25,
		SoCMax:             0.95,
		ChargeEff:          0.95,
		DischargeEff:       0.95,
		TimestepMinutes:    15,
		HorizonSteps:       48,
	}
}

// TimestepHours returns the step length in hours.
func (c RunConfig) TimestepHours() float64 {
	return float64(c.TimestepMinutes) / 60.0
}

// StepsPerDay returns the number of timesteps in one simulated day.
func (c RunConfig) StepsPerDay() int {
	if c.TimestepMinutes <= 0 {
		return 0
	}
	return 1440 / c.TimestepMinutes
}

// Validate checks the physical bounds of the system.
func (c RunConfig) Validate() error {
	switch {
	case c.PVCapacityKW <= 0:
		return fmt.Errorf("%w: pv_capacity_kw must be positive", ErrInvalidConfig)
	case c.BatteryCapacityKWh <= 0:
		return fmt.Errorf("%w: battery_capacity_kwh must be positive", ErrInvalidConfig)
	case c.InverterMaxKW <= 0:
		return fmt.Errorf("%w: inverter_max_kw must be positive", ErrInvalidConfig)
	case c.SoCMin < 0 || c.SoCMax > 1 || c.SoCMin >= c.SoCMax:
		return fmt.Errorf("%w: expected 0 <= soc_min < soc_max <= 1, got %v/%v", ErrInvalidConfig, c.SoCMin, c.SoCMax)
	case c.SoCInit < c.SoCMin || c.SoCInit > c.SoCMax:
		return fmt.Errorf("%w: soc_init %v outside [%v, %v]", ErrInvalidConfig, c.SoCInit, c.SoCMin, c.SoCMax)
	case !validEff(c.ChargeEff) || !validEff(c.DischargeEff):
		return fmt.Errorf("%w: efficiencies must lie in (0, 1]", ErrInvalidConfig)
	case c.TimestepMinutes < 1 || c.TimestepMinutes > 60 || 1440%c.TimestepMinutes != 0:
		return fmt.Errorf("%w: timestep_minutes %d must divide a day and lie in [1, 60]", ErrInvalidConfig, c.TimestepMinutes)
	case c.HorizonSteps < 1:
		return fmt.Errorf("%w: forecast_horizon_steps must be at least 1", ErrInvalidConfig)
	case c.PVEfficiency <= 0 || math.IsNaN(c.PVEfficiency):
		return fmt.Errorf("%w: pv_efficiency must be positive", ErrInvalidConfig)
	}
	return nil
}

func validEff(v float64) bool { return v > 0 && v <= 1 }
