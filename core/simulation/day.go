package simulation

import (
	"slices"

	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/model"
)

// dayState is the bookkeeping reset at every day boundary.
type dayState struct {
	index    int
	baseline float64
	// pending keeps the day's shuffled order.
	pending   []model.TaskInstance
	remaining map[string]int
	// active is the multi-step task currently running, if any.
	active   string
	measured *demand.MeasuredDay
}

func newTaskDay(index int, baseline float64, tasks []model.TaskInstance) dayState {
	d := dayState{
		index:     index,
		baseline:  baseline,
		pending:   tasks,
		remaining: make(map[string]int, len(tasks)),
	}
	for _, t := range tasks {
		d.remaining[t.ID] = max(1, t.DurationSteps)
	}
	return d
}

func newMeasuredDay(index int, md demand.MeasuredDay) dayState {
	return dayState{index: index, remaining: map[string]int{}, measured: &md}
}

// demandAt returns requested total and critical power at a day-local step
// together with the pending tasks inside their window.
func (d *dayState) demandAt(step int) (float64, float64, []model.TaskInstance) {
	if d.measured != nil {
		return d.measured.TotalKW[step], d.measured.CriticalKW[step], nil
	}
	total, crit, _ := demand.RequestedKWForStep(d.baseline, d.pending, step)
	var window []model.TaskInstance
	for _, t := range d.pending {
		if t.InWindow(step) {
			window = append(window, t)
		}
	}
	return total, crit, window
}

// admit decides which tasks actually run. A running multi-step task is
// continued regardless of the controller and is then the only task served.
// Otherwise the controller's served ids are taken in order until a
// multi-step task starts; nothing listed after it is served that step.
func (d *dayState) admit(requested []string, window []model.TaskInstance) ([]string, float64) {
	byID := make(map[string]model.TaskInstance, len(window))
	for _, t := range window {
		byID[t.ID] = t
	}
	if d.active != "" {
		if t, ok := byID[d.active]; ok && d.remaining[d.active] > 0 {
			return []string{d.active}, t.PowerKW
		}
		d.active = ""
	}
	served := []string{}
	var kw float64
	for _, id := range requested {
		t, ok := byID[id]
		if !ok || d.remaining[id] <= 0 || slices.Contains(served, id) {
			continue
		}
		served = append(served, id)
		kw += t.PowerKW
		if t.DurationSteps > 1 {
			d.active = id
			return served, kw
		}
	}
	return served, kw
}

// progress counts one step for every served task and retires finished ones.
func (d *dayState) progress(served []string) {
	for _, id := range served {
		d.remaining[id]--
		if d.remaining[id] > 0 {
			continue
		}
		delete(d.remaining, id)
		d.pending = slices.DeleteFunc(d.pending, func(t model.TaskInstance) bool { return t.ID == id })
		if d.active == id {
			d.active = ""
		}
	}
}

// expire removes the tasks that cannot run at nextStep or later and returns
// them with their remaining steps.
func (d *dayState) expire(nextStep int) []droppedTask {
	var out []droppedTask
	kept := d.pending[:0]
	for _, t := range d.pending {
		if !t.Expired(nextStep) {
			kept = append(kept, t)
			continue
		}
		out = append(out, droppedTask{task: t, remaining: d.remaining[t.ID]})
		delete(d.remaining, t.ID)
		if d.active == t.ID {
			d.active = ""
		}
	}
	d.pending = kept
	return out
}

type droppedTask struct {
	task      model.TaskInstance
	remaining int
}
