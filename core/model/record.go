package model

import "time"

// RiskLevel grades how exposed the household is to losing critical supply.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Decision is what a controller proposes for one timestep. ChargeKW and
// DischargeKW are advisory; the orchestrator derives the applied battery
// flows from the physical energy balance.
type Decision struct {
	Served      []string `json:"served"`
	Deferred    []string `json:"deferred"`
	Shed        []string `json:"shed"`
	ChargeKW    float64  `json:"charge_kw"`
	DischargeKW float64  `json:"discharge_kw"`
}

// Applied holds the battery flows and task set the orchestrator enforced.
type Applied struct {
	ServedTaskIDs []string `json:"served_task_ids"`
	ChargeKW      float64  `json:"charge_kw"`
	DischargeKW   float64  `json:"discharge_kw"`
}

// Guidance is the household-facing summary produced every step.
type Guidance struct {
	Headline    string    `json:"headline"`
	Explanation string    `json:"explanation"`
	RiskLevel   RiskLevel `json:"risk_level"`
	ReasonCodes []string  `json:"reason_codes"`
	Confidence  float64   `json:"confidence"`
	// DominantFactors are the inputs the guidance was derived from.
	DominantFactors map[string]float64 `json:"dominant_factors,omitempty"`
}

// KPISnapshot is the set of ratios derived from the KPI accumulator.
type KPISnapshot struct {
	CLSR                 float64 `json:"clsr"`
	BlackoutMinutes      int     `json:"blackout_minutes"`
	SAR                  float64 `json:"sar"`
	SolarUtilization     float64 `json:"solar_utilization"`
	BatteryThroughputKWh float64 `json:"battery_throughput_kwh"`
}

// StepRecord captures everything observable about one simulated timestep.
type StepRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Step      int       `json:"step_index"`
	PVNowKW   float64   `json:"pv_now_kw"`
	// PVForecastKW is the forward window the controller saw, starting at
	// this step and zero-padded past the end of the run.
	PVForecastKW     []float64   `json:"pv_forecast_kw"`
	SoC              float64     `json:"soc_now"`
	SoCMin           float64     `json:"soc_min"`
	SoCMax           float64     `json:"soc_max"`
	LoadRequestedKW  float64     `json:"load_requested_kw"`
	LoadServedKW     float64     `json:"load_served_kw"`
	CritRequestedKW  float64     `json:"crit_requested_kw"`
	CritServedKW     float64     `json:"crit_served_kw"`
	CurtailedSolarKW float64     `json:"curtailed_solar_kw"`
	Advisory         Decision    `json:"advisory"`
	Applied          Applied     `json:"applied"`
	Guidance         Guidance    `json:"guidance"`
	KPI              KPISnapshot `json:"kpi"`
}
