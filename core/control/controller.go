// Package control defines the controller abstraction and the stock
// dispatch strategies. Controllers only propose; the orchestrator enforces
// feasibility and computes the applied battery flows itself.
package control

import (
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// socEpsilon treats a SoC this close to the reserve as being at the reserve.
const socEpsilon = 1e-6

// Input is the view a controller gets of one timestep.
type Input struct {
	// Step is the day-local step index.
	Step           int
	SoC            float64
	PVNowKW        float64
	PVForecastKW   []float64
	CriticalBaseKW float64
	// Available holds the tasks inside their window, in the day's order.
	Available []model.TaskInstance
	Remaining map[string]int
}

// Controller proposes which tasks to run at a timestep.
type Controller interface {
	Name() string
	Decide(cfg model.RunConfig, in Input) model.Decision
}

func ids(tasks []model.TaskInstance) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func atReserve(cfg model.RunConfig, soc float64) bool {
	return soc <= cfg.SoCMin+socEpsilon
}

// forwardAverage averages the first n forecast values, or fewer when the
// forecast is shorter. An empty forecast averages to zero.
func forwardAverage(forecast []float64, n int) float64 {
	n = min(n, len(forecast))
	if n <= 0 {
		return 0
	}
	return floats.Sum(forecast[:n]) / float64(n)
}

// advisoryFlows turns a net power balance into advisory battery figures.
func advisoryFlows(cfg model.RunConfig, soc, net float64) (float64, float64) {
	if net >= 0 {
		return min(cfg.InverterMaxKW, net), 0
	}
	if soc > cfg.SoCMin {
		return 0, min(cfg.InverterMaxKW, -net)
	}
	return 0, 0
}
