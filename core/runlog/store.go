// Package runlog persists the StepRecord stream of a run. Records are
// appended one at a time so a run never needs to hold its history in memory.
package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// RecordSink receives StepRecords in step order.
type RecordSink interface {
	Append(ctx context.Context, rec model.StepRecord) error
	// Location identifies where records end up, typically a file path.
	Location() string
	Close() error
}

// RecordStore is a RecordSink that can read its records back.
type RecordStore interface {
	RecordSink
	Query(ctx context.Context, q Query) ([]model.StepRecord, error)
}

// Query filters stored records. Zero fields do not filter.
type Query struct {
	Start     time.Time
	End       time.Time
	RiskLevel model.RiskLevel
	Limit     int
}

func (q Query) match(r model.StepRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RiskLevel != "" && r.Guidance.RiskLevel != q.RiskLevel {
		return false
	}
	return true
}

func (q Query) full(n int) bool { return q.Limit > 0 && n >= q.Limit }

// GuidanceEvent is one entry of the structured-guidance stream.
type GuidanceEvent struct {
	RunID     string         `json:"run_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Step      int            `json:"step_index"`
	Guidance  model.Guidance `json:"guidance"`
}

// GuidanceSink receives the guidance stream alongside the records.
type GuidanceSink interface {
	AppendGuidance(ctx context.Context, ev GuidanceEvent) error
}
