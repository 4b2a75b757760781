package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// MarginType classifies the daily energy margin.
type MarginType string

const (
	MarginSurplus MarginType = "surplus"
	MarginTight   MarginType = "tight"
	MarginDeficit MarginType = "deficit"
)

// Status is the advisory assigned to an appliance.
type Status string

const (
	StatusSafe       Status = "safe"
	StatusWindowOnly Status = "window-only"
	StatusAvoid      Status = "avoid"
)

const (
	marginBand         = 0.05
	riskEnergyKWh      = 0.5
	riskPowerKW        = 0.5
	noDataOutlook      = "No data for first planning day. Run the digital twin to generate a day-ahead outlook."
	windowLabelSurplus = "surplus"
	windowLabelDeficit = "deficit"
)

// TimeWindow is a run of contiguous steps sharing the same flag. EndStep is
// inclusive.
type TimeWindow struct {
	StartStep int       `json:"start_step" yaml:"start_step"`
	EndStep   int       `json:"end_step" yaml:"end_step"`
	StartTS   time.Time `json:"start_ts" yaml:"start_ts"`
	EndTS     time.Time `json:"end_ts" yaml:"end_ts"`
	Label     string    `json:"label" yaml:"label"`
}

// Steps returns the number of steps covered by w.
func (w TimeWindow) Steps() int { return w.EndStep - w.StartStep + 1 }

// Format renders w as HH:MM–HH:MM using the timestep length.
func (w TimeWindow) Format(timestepMinutes int) string {
	start := w.StartStep * timestepMinutes
	end := (w.EndStep + 1) * timestepMinutes
	return fmt.Sprintf("%02d:%02d–%02d:%02d", start/60, start%60, end/60, end%60)
}

// Advisory is the day-ahead recommendation for one appliance.
type Advisory struct {
	ApplianceID       string         `json:"appliance_id" yaml:"appliance_id"`
	Name              string         `json:"name" yaml:"name"`
	Category          model.Category `json:"category" yaml:"category"`
	Status            Status         `json:"status" yaml:"status"`
	RecommendedWindow string         `json:"recommended_window,omitempty" yaml:"recommended_window,omitempty"`
	Reason            string         `json:"reason" yaml:"reason"`
}

// Result is the adequacy report for one planning day.
type Result struct {
	TotalSolarKWh    float64    `json:"total_solar_kwh" yaml:"total_solar_kwh"`
	TotalDemandKWh   float64    `json:"total_demand_kwh" yaml:"total_demand_kwh"`
	EnergyMarginKWh  float64    `json:"energy_margin_kwh" yaml:"energy_margin_kwh"`
	EnergyMarginType MarginType `json:"energy_margin_type" yaml:"energy_margin_type"`
	DailyOutlook     string     `json:"daily_outlook_text" yaml:"daily_outlook_text"`

	SurplusWindows   []TimeWindow `json:"surplus_windows" yaml:"surplus_windows"`
	DeficitWindows   []TimeWindow `json:"deficit_windows" yaml:"deficit_windows"`
	MinPowerMarginKW float64      `json:"min_power_margin_kw" yaml:"min_power_margin_kw"`

	CriticalFullyProtected bool  `json:"critical_fully_protected" yaml:"critical_fully_protected"`
	CriticalShortfallSteps []int `json:"critical_shortfall_steps" yaml:"critical_shortfall_steps"`
	DeficitSteps           []int `json:"deficit_steps" yaml:"deficit_steps"`

	RiskLevel  model.RiskLevel `json:"risk_level" yaml:"risk_level"`
	Advisories []Advisory      `json:"appliance_advisories" yaml:"appliance_advisories"`

	DayStart        time.Time `json:"day_start" yaml:"day_start"`
	TimestepMinutes int       `json:"timestep_minutes" yaml:"timestep_minutes"`
	StepsPerDay     int       `json:"steps_per_day" yaml:"steps_per_day"`
}

// Compute analyses the first planning day contained in records. Records past
// one day are ignored.
func Compute(records []model.StepRecord, templates []model.ApplianceTemplate, cfg model.RunConfig) Result {
	daySteps := cfg.StepsPerDay()
	if len(records) > daySteps {
		records = records[:daySteps]
	}
	res := Result{
		TimestepMinutes:        cfg.TimestepMinutes,
		StepsPerDay:            daySteps,
		CriticalFullyProtected: true,
		SurplusWindows:         []TimeWindow{},
		DeficitWindows:         []TimeWindow{},
		CriticalShortfallSteps: []int{},
		DeficitSteps:           []int{},
		Advisories:             []Advisory{},
	}
	if len(records) == 0 {
		res.EnergyMarginType = MarginTight
		res.DailyOutlook = noDataOutlook
		res.RiskLevel = model.RiskMedium
		return res
	}
	res.DayStart = records[0].Timestamp

	dtH := cfg.TimestepHours()
	n := len(records)
	pv := make([]float64, n)
	load := make([]float64, n)
	margin := make([]float64, n)
	surplus := make([]bool, n)
	deficit := make([]bool, n)
	for i, r := range records {
		pv[i] = r.PVNowKW
		load[i] = r.LoadRequestedKW
		margin[i] = pv[i] - load[i]
		surplus[i] = pv[i] >= load[i]
		deficit[i] = load[i] > pv[i]
		if deficit[i] {
			res.DeficitSteps = append(res.DeficitSteps, i)
		}
		if r.CritRequestedKW > 0 && pv[i] < r.CritRequestedKW {
			res.CriticalFullyProtected = false
			res.CriticalShortfallSteps = append(res.CriticalShortfallSteps, i)
		}
	}

	res.TotalSolarKWh = floats.Sum(pv) * dtH
	res.TotalDemandKWh = floats.Sum(load) * dtH
	res.EnergyMarginKWh = res.TotalSolarKWh - res.TotalDemandKWh
	res.EnergyMarginType = classify(res.EnergyMarginKWh, res.TotalDemandKWh)
	res.DailyOutlook = outlook(res.EnergyMarginType, res.EnergyMarginKWh)
	res.MinPowerMarginKW = floats.Min(margin)

	res.SurplusWindows = mergeWindows(surplus, records, windowLabelSurplus)
	res.DeficitWindows = mergeWindows(deficit, records, windowLabelDeficit)

	switch {
	case !res.CriticalFullyProtected || res.EnergyMarginKWh < -riskEnergyKWh:
		res.RiskLevel = model.RiskHigh
	case res.EnergyMarginKWh < 0 || res.MinPowerMarginKW < -riskPowerKW:
		res.RiskLevel = model.RiskMedium
	default:
		res.RiskLevel = model.RiskLow
	}

	for _, t := range templates {
		res.Advisories = append(res.Advisories, advise(t, res))
	}
	return res
}

func classify(marginKWh, demandKWh float64) MarginType {
	switch {
	case demandKWh <= 0:
		return MarginSurplus
	case marginKWh > marginBand*demandKWh:
		return MarginSurplus
	case marginKWh < -marginBand*demandKWh:
		return MarginDeficit
	default:
		return MarginTight
	}
}

func outlook(t MarginType, marginKWh float64) string {
	switch t {
	case MarginSurplus:
		return "Solar energy is sufficient for the day (expected surplus)."
	case MarginTight:
		return fmt.Sprintf("Solar and demand are closely matched. Small margin: %+.2f kWh. "+
			"Consider shifting flexible loads into surplus windows.", marginKWh)
	default:
		return fmt.Sprintf("Expected shortfall of %.2f kWh. "+
			"Prioritise critical loads; run flexible/deferrable only in surplus windows or avoid today.",
			math.Abs(marginKWh))
	}
}

func mergeWindows(flags []bool, records []model.StepRecord, label string) []TimeWindow {
	out := []TimeWindow{}
	start := -1
	closeAt := func(end int) {
		out = append(out, TimeWindow{
			StartStep: start,
			EndStep:   end,
			StartTS:   records[start].Timestamp,
			EndTS:     records[end].Timestamp,
			Label:     label,
		})
		start = -1
	}
	for i, f := range flags {
		switch {
		case f && start < 0:
			start = i
		case !f && start >= 0:
			closeAt(i - 1)
		}
	}
	if start >= 0 {
		closeAt(len(flags) - 1)
	}
	return out
}

func advise(t model.ApplianceTemplate, res Result) Advisory {
	adv := Advisory{ApplianceID: t.ID, Name: t.Name, Category: t.Category}
	if adv.Name == "" {
		adv.Name = t.ID
	}
	kw := t.PowerKW()
	tsMin := res.TimestepMinutes

	if t.Category == model.Critical {
		if res.CriticalFullyProtected {
			adv.Status = StatusSafe
			adv.Reason = fmt.Sprintf("Your %s (%.2f kW) is covered by expected solar all day.", adv.Name, kw)
			return adv
		}
		adv.Status = StatusAvoid
		if len(res.DeficitWindows) > 0 {
			adv.Reason = fmt.Sprintf("Shortfall expected %s. Keep %s on and avoid adding load then.",
				formatList(res.DeficitWindows, tsMin), adv.Name)
		} else {
			adv.Reason = fmt.Sprintf("Expected solar may not cover essentials in some windows. "+
				"Keep %s on and avoid adding load then.", adv.Name)
		}
		return adv
	}

	if len(res.SurplusWindows) == 0 {
		adv.Status = StatusAvoid
		adv.Reason = fmt.Sprintf("No surplus windows tomorrow; avoid non-essential use of %s.", adv.Name)
		return adv
	}

	need := t.Steps()
	for _, w := range res.SurplusWindows {
		if w.Steps() >= need {
			adv.Status = StatusSafe
			adv.RecommendedWindow = w.Format(tsMin)
			adv.Reason = fmt.Sprintf("Run %s between %s; solar exceeds your load then (%.2f kW).",
				adv.Name, adv.RecommendedWindow, kw)
			return adv
		}
	}

	longest := res.SurplusWindows[0]
	for _, w := range res.SurplusWindows[1:] {
		if w.Steps() > longest.Steps() {
			longest = w
		}
	}
	adv.Status = StatusWindowOnly
	adv.RecommendedWindow = longest.Format(tsMin)
	adv.Reason = fmt.Sprintf("%s needs %d min of continuous surplus; longest surplus is %s (%d steps). "+
		"Run there if needed (%.2f kW).", adv.Name, need*tsMin, adv.RecommendedWindow, longest.Steps(), kw)
	return adv
}

func formatList(ws []TimeWindow, timestepMinutes int) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.Format(timestepMinutes)
	}
	return strings.Join(parts, " and ")
}
