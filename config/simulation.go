package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/offgrid-dt/core/control"
	"github.com/kilianp07/offgrid-dt/core/factory"
)

// Demand modes.
const (
	DemandAppliances = "appliances"
	DemandMeasured   = "measured"
)

// SimulationConfig selects what a run simulates.
type SimulationConfig struct {
	Days       int    `json:"days"`
	Seed       uint64 `json:"seed"`
	Controller string `json:"controller"`
	// ControllerConf tunes the selected controller, e.g. reserve_factor
	// for forecast_heuristic.
	ControllerConf map[string]any `json:"controller_conf"`
	// DemandMode is "appliances" or "measured".
	DemandMode  string `json:"demand_mode"`
	MeasuredCSV string `json:"measured_csv"`
	// Start is RFC 3339 or YYYY-MM-DD. Empty means the current hour.
	Start          string `json:"start"`
	OutDir         string `json:"out_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c *SimulationConfig) SetDefaults() {
	if c.Days <= 0 {
		c.Days = 1
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Controller == "" {
		c.Controller = "rule_based"
	}
	if c.DemandMode == "" {
		c.DemandMode = DemandAppliances
	}
	if c.OutDir == "" {
		c.OutDir = "runs"
	}
}

func (c SimulationConfig) Validate() error {
	if c.Days <= 0 {
		return fmt.Errorf("simulation: days must be positive")
	}
	if _, err := control.New(c.ControllerModule()); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	switch c.DemandMode {
	case DemandAppliances:
	case DemandMeasured:
		if c.MeasuredCSV == "" {
			return fmt.Errorf("simulation: measured_csv is required in measured mode")
		}
	default:
		return fmt.Errorf("simulation: unknown demand_mode %q", c.DemandMode)
	}
	if _, err := c.StartTime(); err != nil {
		return err
	}
	return nil
}

// ControllerModule is the factory configuration of the selected controller.
func (c SimulationConfig) ControllerModule() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Controller, Conf: c.ControllerConf}
}

// StartTime parses Start. The zero time means "now".
func (c SimulationConfig) StartTime() (time.Time, error) {
	if c.Start == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, c.Start); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("simulation: invalid start %q", c.Start)
}

// Timeout is zero when unbounded.
func (c SimulationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
