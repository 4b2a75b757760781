// Package guidance turns the state of one timestep into advice a household
// can act on.
package guidance

import (
	"context"
	"slices"
	"strings"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// Reason codes attached to a Guidance.
const (
	LowSoC        = "LOW_SOC"
	MidSoC        = "MID_SOC"
	LowPVForecast = "LOW_PV_FORECAST"
	PVSurplus     = "PV_SURPLUS"
	DeferTasks    = "DEFER_TASKS"
)

const confidence = 0.75

// Context carries the quantities guidance is derived from.
type Context struct {
	SoC           float64
	PVNowKW       float64
	PVAvgNext2hKW float64
	CriticalKW    float64
}

// Generate grades the risk and picks a headline.
func Generate(cfg model.RunConfig, c Context, usedKW float64, deferred int) model.Guidance {
	var codes []string
	risk := model.RiskLow
	switch {
	case c.SoC <= cfg.SoCMin+0.05:
		risk = model.RiskHigh
		codes = append(codes, LowSoC)
	case c.SoC <= cfg.SoCMin+0.12:
		risk = model.RiskMedium
		codes = append(codes, MidSoC)
	}
	if c.PVAvgNext2hKW < 0.25*cfg.PVCapacityKW {
		codes = append(codes, LowPVForecast)
		if risk == model.RiskMedium {
			risk = model.RiskHigh
		}
	}
	if c.PVNowKW > c.CriticalKW+0.5 {
		codes = append(codes, PVSurplus)
	}
	if deferred > 0 {
		codes = append(codes, DeferTasks)
	}

	g := model.Guidance{
		RiskLevel:   risk,
		ReasonCodes: codes,
		Confidence:  confidence,
		DominantFactors: map[string]float64{
			"soc":              c.SoC,
			"pv_now_kw":        c.PVNowKW,
			"pv_avg_next2h_kw": c.PVAvgNext2hKW,
			"used_kw":          usedKW,
		},
	}
	switch {
	case slices.Contains(codes, LowSoC) && slices.Contains(codes, LowPVForecast):
		g.Headline = "Conserve: protect battery reserve"
		g.Explanation = "Battery reserve is low and solar is expected to stay limited. Delay heavy and non-essential tasks."
	case slices.Contains(codes, PVSurplus):
		g.Headline = "Use solar now: run heavy tasks"
		g.Explanation = "Solar is strong right now. Run high-power tasks within this window to reduce battery discharge later."
	case deferred > 0:
		g.Headline = "Shift non-critical tasks"
		g.Explanation = "Some tasks are deferred to keep essential loads reliable. Try again when solar improves or SOC rises."
	default:
		g.Headline = "Normal operation"
		g.Explanation = "Energy conditions are acceptable. You can use flexible appliances within recommended windows."
	}
	if g.ReasonCodes == nil {
		g.ReasonCodes = []string{}
	}
	return g
}

// Enhancer rewrites a guidance explanation, for example into friendlier
// wording.
type Enhancer interface {
	Enhance(ctx context.Context, g model.Guidance, household string) (string, error)
}

// EnhancerFunc adapts a function to Enhancer.
type EnhancerFunc func(ctx context.Context, g model.Guidance, household string) (string, error)

func (f EnhancerFunc) Enhance(ctx context.Context, g model.Guidance, household string) (string, error) {
	return f(ctx, g, household)
}

// Enhance applies e to g. The original guidance is returned unchanged when e
// is nil, fails or produces blank text, together with the error if any.
func Enhance(ctx context.Context, e Enhancer, g model.Guidance, household string) (model.Guidance, error) {
	if e == nil {
		return g, nil
	}
	text, err := e.Enhance(ctx, g, household)
	if err != nil {
		return g, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return g, nil
	}
	g.Explanation = text
	return g, nil
}
