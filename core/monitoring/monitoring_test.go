package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	issues []RunIssue
	errs   []error
}

func (c *captured) CaptureException(err error, _ map[string]string) { c.errs = append(c.errs, err) }
func (c *captured) CaptureRunIssue(i RunIssue)                      { c.issues = append(c.issues, i) }
func (c *captured) Recover()                                        {}
func (c *captured) Flush(time.Duration)                             {}

func TestCaptureRunIssue(t *testing.T) {
	c := &captured{}
	Init(c)
	defer Init(nil)

	CaptureRunIssue(RunIssue{RunID: "r1", Collaborator: "pv_forecast", Err: errors.New("timeout")})
	CaptureRunIssue(RunIssue{RunID: "r1"})
	CaptureException(nil, nil)

	require.Len(t, c.issues, 1)
	assert.Empty(t, c.errs)
	assert.Equal(t, map[string]string{"run_id": "r1", "severity": "fallback", "collaborator": "pv_forecast"}, c.issues[0].Tags())
}

func TestRunIssueTagsFatal(t *testing.T) {
	tags := RunIssue{RunID: "r2", Controller: "naive", Fatal: true, Err: errors.New("disk full")}.Tags()
	assert.Equal(t, "fatal", tags["severity"])
	assert.Equal(t, "naive", tags["controller"])
	_, ok := tags["collaborator"]
	assert.False(t, ok)
}

func TestInitNilRestoresNop(t *testing.T) {
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
	CaptureRunIssue(RunIssue{Err: errors.New("ignored")})
}
