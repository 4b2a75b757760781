package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/offgrid-dt/config"
	coremon "github.com/kilianp07/offgrid-dt/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. An empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg config.SentryConfig, beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "offgrid-dt")
	})
	return &sentryMonitor{}, nil
}

type sentryMonitor struct{}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureRunIssue groups events by collaborator rather than by message so
// the same failing forecast source across runs is one issue. Fallbacks are
// sent as warnings.
func (s *sentryMonitor) CaptureRunIssue(issue coremon.RunIssue) {
	if issue.Err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range issue.Tags() {
			scope.SetTag(k, v)
		}
		scope.SetContext("run", sentry.Context{"run_id": issue.RunID, "controller": issue.Controller})
		if issue.Fatal {
			scope.SetLevel(sentry.LevelError)
			scope.SetFingerprint([]string{"run-failed", "{{ default }}"})
		} else {
			scope.SetLevel(sentry.LevelWarning)
			scope.SetFingerprint([]string{"run-fallback", issue.Collaborator})
		}
		sentry.CaptureException(issue.Err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
