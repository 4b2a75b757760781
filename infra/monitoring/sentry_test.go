package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/offgrid-dt/config"
	coremon "github.com/kilianp07/offgrid-dt/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitorTagsEvents(t *testing.T) {
	var mu sync.Mutex
	var got []*sentry.Event
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"},
		func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	m.CaptureException(errors.New("nasa timeout"), map[string]string{"collaborator": "pv_forecast"})
	m.CaptureRunIssue(coremon.RunIssue{RunID: "r1", Controller: "naive", Collaborator: "guidance_enhancer", Err: errors.New("quota")})
	m.CaptureRunIssue(coremon.RunIssue{RunID: "r1", Fatal: true, Err: errors.New("disk full")})
	m.CaptureRunIssue(coremon.RunIssue{RunID: "r1"})
	m.CaptureException(nil, nil)
	m.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, "pv_forecast", got[0].Tags["collaborator"])
	assert.Equal(t, "offgrid-dt", got[0].Tags["service"])
	assert.Equal(t, "test", got[0].Environment)

	assert.Equal(t, sentry.LevelWarning, got[1].Level)
	assert.Equal(t, []string{"run-fallback", "guidance_enhancer"}, got[1].Fingerprint)
	assert.Equal(t, "naive", got[1].Tags["controller"])
	assert.Equal(t, "fallback", got[1].Tags["severity"])

	assert.Equal(t, sentry.LevelError, got[2].Level)
	assert.Equal(t, "fatal", got[2].Tags["severity"])
	assert.Equal(t, "r1", got[2].Tags["run_id"])
}
