package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSink struct {
	steps, drops int
	err          error
}

func (c *countingSink) RecordStep(StepObservation) error { c.steps++; return c.err }
func (c *countingSink) RecordTaskDrop(TaskDrop) error    { c.drops++; return nil }

func TestMultiSinkFansOut(t *testing.T) {
	a := &countingSink{err: errors.New("influx down")}
	b := &countingSink{}
	m := NewMultiSink(a, b, NopSink{})

	err := m.RecordStep(StepObservation{RunID: "r"})
	assert.Error(t, err)
	assert.Equal(t, 1, a.steps)
	assert.Equal(t, 1, b.steps)

	assert.NoError(t, m.RecordTaskDrop(TaskDrop{TaskID: "iron_day"}))
	assert.Equal(t, 1, a.drops)
	assert.Equal(t, 1, b.drops)

	assert.NoError(t, m.RecordFallback(Fallback{Collaborator: "pv_forecast"}))
	assert.NoError(t, m.RecordRun(RunSummary{}))
}

type closingSink struct {
	NopSink
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(NopSink{}, c).Close()
	assert.True(t, c.closed)
}
