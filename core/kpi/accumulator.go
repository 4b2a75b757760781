// Package kpi accumulates energy totals over a run and derives the service
// ratios reported with every step.
package kpi

import (
	"math"

	"github.com/kilianp07/offgrid-dt/core/model"
)

const (
	shortfallTolerance = 1e-9
	denomFloor         = 1e-9
)

// Step holds the per-step quantities fed to the accumulator, in kW.
type Step struct {
	DtH              float64
	CritRequestedKW  float64
	CritServedKW     float64
	TotalRequestedKW float64
	ServedKW         float64
	PVKW             float64
	CurtailedKW      float64
	ThroughputKWh    float64
}

// Accumulator keeps running energy totals. The zero value is ready to use.
type Accumulator struct {
	critRequestedKWh float64
	critServedKWh    float64
	requestedKWh     float64
	servedKWh        float64
	solarUsedKWh     float64
	generatedKWh     float64
	curtailedKWh     float64
	blackoutMinutes  int
	throughputKWh    float64
}

// Update adds one step. ThroughputKWh is the battery's cumulative figure,
// not an increment.
func (a *Accumulator) Update(s Step) {
	a.critRequestedKWh += s.CritRequestedKW * s.DtH
	a.critServedKWh += s.CritServedKW * s.DtH
	a.requestedKWh += s.TotalRequestedKW * s.DtH
	a.servedKWh += s.ServedKW * s.DtH
	a.generatedKWh += s.PVKW * s.DtH
	a.curtailedKWh += s.CurtailedKW * s.DtH
	a.solarUsedKWh += math.Max(0, s.PVKW-s.CurtailedKW) * s.DtH
	if s.CritServedKW+shortfallTolerance < s.CritRequestedKW {
		a.blackoutMinutes += int(math.Round(s.DtH * 60))
	}
	a.throughputKWh = s.ThroughputKWh
}

// Snapshot derives the ratios. Zero denominators resolve to the vacuous
// value: CLSR and utilisation read 1, SAR reads 0.
func (a *Accumulator) Snapshot() model.KPISnapshot {
	clsr := 1.0
	if a.critRequestedKWh > denomFloor {
		clsr = ratio(a.critServedKWh, a.critRequestedKWh)
	}
	var sar float64
	if a.requestedKWh > denomFloor {
		sar = ratio(a.solarUsedKWh, a.requestedKWh)
	}
	util := 1.0
	if a.generatedKWh > denomFloor {
		util = 1 - ratio(a.curtailedKWh, a.generatedKWh)
	}
	return model.KPISnapshot{
		CLSR:                 clsr,
		BlackoutMinutes:      a.blackoutMinutes,
		SAR:                  sar,
		SolarUtilization:     util,
		BatteryThroughputKWh: a.throughputKWh,
	}
}

// Totals exposes the raw energy sums, in kWh.
func (a *Accumulator) Totals() map[string]float64 {
	return map[string]float64{
		"crit_requested_kwh": a.critRequestedKWh,
		"crit_served_kwh":    a.critServedKWh,
		"requested_kwh":      a.requestedKWh,
		"served_kwh":         a.servedKWh,
		"solar_used_kwh":     a.solarUsedKWh,
		"generated_kwh":      a.generatedKWh,
		"curtailed_kwh":      a.curtailedKWh,
	}
}

func ratio(num, den float64) float64 {
	return math.Min(1, math.Max(0, num/den))
}
