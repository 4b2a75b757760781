package demand

import "github.com/kilianp07/offgrid-dt/core/model"

// Default daily runtimes, in hours, used by NominalPlan.
var nominalHours = map[model.Category]float64{
	model.Critical:   24,
	model.Flexible:   4,
	model.Deferrable: 2,
}

// Plan is the nominal energy budget of a household.
type Plan struct {
	E24hKWh float64 `json:"e24h_kwh"`
	PAvgKW  float64 `json:"pavg_kw"`
	E12hKWh float64 `json:"e12h_kwh"`
}

// NominalPlan estimates daily energy assuming every appliance runs for the
// default runtime of its category.
func NominalPlan(templates []model.ApplianceTemplate) Plan {
	var e24 float64
	for _, a := range templates {
		e24 += a.PowerKW() * nominalHours[a.Category]
	}
	return Plan{E24hKWh: e24, PAvgKW: e24 / 24, E12hKWh: e24 / 2}
}

// PlannedDailyEnergyKWh is the energy one simulated day asks for: critical
// loads for the whole day plus every task instance run to completion.
func PlannedDailyEnergyKWh(templates []model.ApplianceTemplate, daySteps int, dtH float64) float64 {
	var kwh float64
	for _, a := range templates {
		switch {
		case a.Category == model.Critical:
			kwh += a.PowerKW() * float64(daySteps) * dtH
		case a.Category == model.Deferrable && a.DailyQuotaSteps > 0:
			kwh += a.PowerKW() * float64(a.DailyQuotaSteps) * dtH
		default:
			kwh += a.PowerKW() * float64(a.Steps()) * dtH
		}
	}
	return kwh
}
