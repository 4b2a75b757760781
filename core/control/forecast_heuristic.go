package control

import (
	"sort"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// ForecastHeuristic ranks tasks by urgency and admits them greedily into a
// power budget made of the PV surplus plus part of the battery headroom. The
// battery share is reduced when the forward PV outlook is low.
type ForecastHeuristic struct {
	// OutlookSteps is the number of forecast steps averaged.
	OutlookSteps int `json:"outlook_steps"`
	// LowOutlookFraction of PV capacity below which the outlook is low.
	LowOutlookFraction float64 `json:"low_outlook_fraction"`
	ReserveFactor      float64 `json:"reserve_factor"`
	LowReserveFactor   float64 `json:"low_reserve_factor"`
}

// NewForecastHeuristic returns the strategy with the stock parameters.
func NewForecastHeuristic() ForecastHeuristic {
	return ForecastHeuristic{
		OutlookSteps:       12,
		LowOutlookFraction: 0.25,
		ReserveFactor:      1.0,
		LowReserveFactor:   0.5,
	}
}

func (ForecastHeuristic) Name() string { return "forecast_heuristic" }

type candidate struct {
	task  model.TaskInstance
	score float64
}

func (f ForecastHeuristic) Decide(cfg model.RunConfig, in Input) model.Decision {
	d := model.Decision{Served: []string{}, Deferred: []string{}, Shed: []string{}}

	rf := f.ReserveFactor
	if forwardAverage(in.PVForecastKW, f.OutlookSteps) < f.LowOutlookFraction*cfg.PVCapacityKW {
		rf = f.LowReserveFactor
	}

	cands := make([]candidate, 0, len(in.Available))
	for _, t := range in.Available {
		slack := max(0, t.LatestEndStep-in.Step)
		score := 1.0 / float64(max(1, slack))
		if t.MustCompleteDaily {
			score++
		}
		cands = append(cands, candidate{task: t, score: score})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].task.PowerKW > cands[j].task.PowerKW
	})

	var battery float64
	if dtH := cfg.TimestepHours(); dtH > 0 {
		headroom := max(0, in.SoC-cfg.SoCMin)
		battery = min(cfg.InverterMaxKW, rf*headroom*cfg.BatteryCapacityKWh/dtH)
	}
	budget := max(0, in.PVNowKW-in.CriticalBaseKW) + battery

	var used float64
	for _, c := range cands {
		if used+c.task.PowerKW <= budget+1e-9 {
			d.Served = append(d.Served, c.task.ID)
			used += c.task.PowerKW
		} else {
			d.Deferred = append(d.Deferred, c.task.ID)
		}
	}
	d.ChargeKW, d.DischargeKW = advisoryFlows(cfg, in.SoC, in.PVNowKW-(in.CriticalBaseKW+used))
	return d
}
