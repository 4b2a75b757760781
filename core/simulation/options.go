package simulation

import (
	"time"

	"github.com/kilianp07/offgrid-dt/core/control"
	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/forecast"
	"github.com/kilianp07/offgrid-dt/core/guidance"
	"github.com/kilianp07/offgrid-dt/core/logger"
	"github.com/kilianp07/offgrid-dt/core/matching"
	"github.com/kilianp07/offgrid-dt/core/model"
	"github.com/kilianp07/offgrid-dt/core/runlog"
	"github.com/kilianp07/offgrid-dt/internal/eventbus"
)

// Options wires the collaborators of one run.
type Options struct {
	Controller control.Controller
	// Templates describe the household. In measured mode they still feed the
	// fallback day used when a measured day cannot be fetched.
	Templates []model.ApplianceTemplate
	// Measured switches the run to measured-demand mode when set.
	Measured demand.MeasuredProvider
	// PV supplies irradiance for the whole run. Nil means synthetic.
	PV           forecast.Provider
	PVSource     string
	DemandSource string

	Days  int
	Seed  uint64
	Start time.Time
	RunID string

	Store    runlog.RecordSink
	Enhancer guidance.Enhancer
	Bus      eventbus.EventBus
	Logger   logger.Logger
}

// Summary describes a finished run.
type Summary struct {
	RunID              string            `json:"run_id"`
	Start              time.Time         `json:"start"`
	Controller         string            `json:"controller"`
	PVSource           string            `json:"pv_source"`
	DemandSource       string            `json:"demand_source"`
	Steps              int               `json:"steps"`
	PlannedFirstDayKWh float64           `json:"planned_first_day_kwh"`
	KPI                model.KPISnapshot `json:"kpi"`
	DayAhead           matching.Result   `json:"day_ahead"`
	Logs               map[string]string `json:"logs"`
	Fallbacks          int               `json:"fallbacks"`
	Elapsed            time.Duration     `json:"elapsed"`
}
