package metrics

import (
	"time"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// StepObservation is one completed timestep of a run.
type StepObservation struct {
	RunID      string
	Controller string
	Record     model.StepRecord
}

// MetricsSink records per-step observations.
type MetricsSink interface {
	RecordStep(obs StepObservation) error
}

// TaskDrop describes a task that left its day unfinished.
type TaskDrop struct {
	RunID        string
	Controller   string
	TaskID       string
	ApplianceID  string
	Category     model.Category
	MustComplete bool
	Remaining    int
	Day          int
}

// TaskDropRecorder records unfinished tasks.
type TaskDropRecorder interface {
	RecordTaskDrop(ev TaskDrop) error
}

// Fallback describes a failed collaborator replaced by its fallback.
type Fallback struct {
	RunID        string
	Collaborator string
	Reason       string
	Time         time.Time
}

// FallbackRecorder records collaborator fallbacks.
type FallbackRecorder interface {
	RecordFallback(ev Fallback) error
}

// RunSummary is reported once per completed run.
type RunSummary struct {
	RunID      string
	Controller string
	Steps      int
	KPI        model.KPISnapshot
	Elapsed    time.Duration
}

// RunRecorder records run summaries.
type RunRecorder interface {
	RecordRun(s RunSummary) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordStep(StepObservation) error { return nil }
func (NopSink) RecordTaskDrop(TaskDrop) error    { return nil }
func (NopSink) RecordFallback(Fallback) error    { return nil }
func (NopSink) RecordRun(RunSummary) error       { return nil }
