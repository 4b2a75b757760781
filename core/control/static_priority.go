package control

import "github.com/kilianp07/offgrid-dt/core/model"

// StaticPriority admits tasks by category once the battery holds enough
// headroom above the reserve. At the reserve everything it would defer is
// shed instead.
type StaticPriority struct {
	DeferrableHeadroom float64 `json:"deferrable_headroom"`
	FlexibleHeadroom   float64 `json:"flexible_headroom"`
}

// NewStaticPriority returns the strategy with the stock thresholds.
func NewStaticPriority() StaticPriority {
	return StaticPriority{DeferrableHeadroom: 0.10, FlexibleHeadroom: 0.05}
}

func (StaticPriority) Name() string { return "static_priority" }

func (s StaticPriority) Decide(cfg model.RunConfig, in Input) model.Decision {
	d := model.Decision{Served: []string{}, Deferred: []string{}, Shed: []string{}}
	for _, t := range in.Available {
		need := cfg.SoCMin + s.FlexibleHeadroom
		if t.Category == model.Deferrable {
			need = cfg.SoCMin + s.DeferrableHeadroom
		}
		if in.SoC >= need {
			d.Served = append(d.Served, t.ID)
		} else {
			d.Deferred = append(d.Deferred, t.ID)
		}
	}
	if atReserve(cfg, in.SoC) {
		d.Shed, d.Deferred = d.Deferred, []string{}
	}
	return d
}
