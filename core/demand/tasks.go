// Package demand expands appliance templates into daily task instances and
// reports the demand they represent at each step.
package demand

import (
	"fmt"
	"math/rand/v2"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// BuildDailyTasks splits the templates into the critical baseline, in kW, and
// the day's task instances. Deferrable templates with a positive quota expand
// into that many single-step must-complete instances; every other
// non-critical template yields one instance spanning its duration. Windows
// are clipped to [0, daySteps]. The instances are shuffled with rng so greedy
// controllers do not always favour the same appliance.
func BuildDailyTasks(templates []model.ApplianceTemplate, daySteps int, rng *rand.Rand) (float64, []model.TaskInstance) {
	var baseline float64
	var tasks []model.TaskInstance
	for _, a := range templates {
		if a.Category == model.Critical {
			baseline += a.PowerKW()
			continue
		}
		start := max(0, a.EarliestStartStep)
		end := min(daySteps, a.LatestEndStep)
		if a.Category == model.Deferrable && a.DailyQuotaSteps > 0 {
			for i := 0; i < a.DailyQuotaSteps; i++ {
				tasks = append(tasks, model.TaskInstance{
					ID:                fmt.Sprintf("%s_quota_%d", a.ID, i),
					ApplianceID:       a.ID,
					Category:          a.Category,
					PowerKW:           a.PowerKW(),
					DurationSteps:     1,
					EarliestStartStep: start,
					LatestEndStep:     end,
					MustCompleteDaily: true,
				})
			}
			continue
		}
		tasks = append(tasks, model.TaskInstance{
			ID:                a.ID + "_day",
			ApplianceID:       a.ID,
			Category:          a.Category,
			PowerKW:           a.PowerKW(),
			DurationSteps:     a.Steps(),
			EarliestStartStep: start,
			LatestEndStep:     end,
			MustCompleteDaily: a.Category == model.Deferrable,
		})
	}
	if rng != nil {
		rng.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
	}
	return baseline, tasks
}

// RequestedKWForStep returns the candidate demand at a day-local step: the
// total in kW, the critical part and the ids of the tasks inside their
// window. Remaining duration is not considered.
func RequestedKWForStep(baseline float64, tasks []model.TaskInstance, step int) (float64, float64, []string) {
	total := baseline
	var available []string
	for _, t := range tasks {
		if t.InWindow(step) {
			total += t.PowerKW
			available = append(available, t.ID)
		}
	}
	return total, baseline, available
}

// CriticalBaselineKW sums the critical templates.
func CriticalBaselineKW(templates []model.ApplianceTemplate) float64 {
	var kw float64
	for _, a := range templates {
		if a.Category == model.Critical {
			kw += a.PowerKW()
		}
	}
	return kw
}
