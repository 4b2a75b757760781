// Package monitoring reports errors to an external tracker. The process
// installs one Monitor with Init; until then reports are discarded.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// CaptureRunIssue reports a problem tied to one simulation run.
	CaptureRunIssue(issue RunIssue)
	Recover()
	Flush(timeout time.Duration)
}

// RunIssue is a failure observed while a run was in progress. Fallbacks
// are recoverable: the run went on with a substitute. Fatal issues ended
// the run.
type RunIssue struct {
	RunID        string
	Controller   string
	Collaborator string
	Fatal        bool
	Err          error
}

// Tags flattens the issue into tracker tags.
func (i RunIssue) Tags() map[string]string {
	tags := map[string]string{"run_id": i.RunID, "severity": "fallback"}
	if i.Fatal {
		tags["severity"] = "fatal"
	}
	if i.Controller != "" {
		tags["controller"] = i.Controller
	}
	if i.Collaborator != "" {
		tags["collaborator"] = i.Collaborator
	}
	return tags
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CaptureRunIssue(RunIssue)                  {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. Nil restores the no-op one.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err != nil {
		get().CaptureException(err, tags)
	}
}

// CaptureRunIssue records a run-scoped failure. Issues without an error
// are ignored.
func CaptureRunIssue(issue RunIssue) {
	if issue.Err != nil {
		get().CaptureRunIssue(issue)
	}
}

// Recover captures panics in goroutines.
func Recover() { get().Recover() }

// Flush flushes buffered events.
func Flush(d time.Duration) { get().Flush(d) }
