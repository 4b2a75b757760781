package control

import "github.com/kilianp07/offgrid-dt/core/model"

// RuleBased runs a task only when instantaneous PV covers the critical
// baseline plus that task.
type RuleBased struct{}

func (RuleBased) Name() string { return "rule_based" }

func (RuleBased) Decide(cfg model.RunConfig, in Input) model.Decision {
	d := model.Decision{Served: []string{}, Deferred: []string{}, Shed: []string{}}
	for _, t := range in.Available {
		if in.PVNowKW >= in.CriticalBaseKW+t.PowerKW {
			d.Served = append(d.Served, t.ID)
		} else {
			d.Deferred = append(d.Deferred, t.ID)
		}
	}
	d.ChargeKW = max(0, in.PVNowKW-in.CriticalBaseKW)
	if in.PVNowKW < in.CriticalBaseKW && in.SoC > cfg.SoCMin {
		d.DischargeKW = min(cfg.InverterMaxKW, in.CriticalBaseKW-in.PVNowKW)
	}
	return d
}
