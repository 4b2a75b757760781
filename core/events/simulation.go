package events

import (
	"time"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// DayStartEvent is published at every day boundary.
type DayStartEvent struct {
	RunID      string
	Controller string
	Day        int
	Tasks      int
	Measured   bool
}

// StepEvent carries the record of a completed timestep.
type StepEvent struct {
	RunID      string
	Controller string
	Record     model.StepRecord
}

// TaskDroppedEvent is published when a pending task can no longer run
// today, either because its window closed or the day ended.
type TaskDroppedEvent struct {
	RunID          string
	Controller     string
	Day            int
	Task           model.TaskInstance
	RemainingSteps int
}

// FallbackEvent is published when an optional collaborator failed.
type FallbackEvent struct {
	RunID        string
	Collaborator string
	Err          error
	Time         time.Time
}

// RunFinishedEvent is published once the last step is stored.
type RunFinishedEvent struct {
	RunID      string
	Controller string
	Steps      int
	KPI        model.KPISnapshot
	Elapsed    time.Duration
}
