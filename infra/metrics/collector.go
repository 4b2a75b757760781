package metrics

import (
	"context"

	"github.com/kilianp07/offgrid-dt/core/events"
	"github.com/kilianp07/offgrid-dt/core/logger"
	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
	"github.com/kilianp07/offgrid-dt/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// simulation events. The subscription is taken before returning, so events
// published afterwards are seen. The returned channel is closed once the
// bus is closed or ctx is canceled and every received event was handled.
// Sink errors are logged, the first one at warn level.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		warned := false
		report := func(err error) {
			if err == nil {
				return
			}
			if !warned {
				warned = true
				log.Warnf("metrics sink error: %v", err)
				return
			}
			log.Debugf("metrics sink error: %v", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				report(dispatch(sink, ev))
			}
		}
	}()
	return done
}

func dispatch(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.StepEvent:
		return sink.RecordStep(coremetrics.StepObservation{RunID: e.RunID, Controller: e.Controller, Record: e.Record})
	case events.TaskDroppedEvent:
		if r, ok := sink.(coremetrics.TaskDropRecorder); ok {
			return r.RecordTaskDrop(coremetrics.TaskDrop{
				RunID:        e.RunID,
				Controller:   e.Controller,
				TaskID:       e.Task.ID,
				ApplianceID:  e.Task.ApplianceID,
				Category:     e.Task.Category,
				MustComplete: e.Task.MustCompleteDaily,
				Remaining:    e.RemainingSteps,
				Day:          e.Day,
			})
		}
	case events.FallbackEvent:
		if r, ok := sink.(coremetrics.FallbackRecorder); ok {
			reason := ""
			if e.Err != nil {
				reason = e.Err.Error()
			}
			return r.RecordFallback(coremetrics.Fallback{RunID: e.RunID, Collaborator: e.Collaborator, Reason: reason, Time: e.Time})
		}
	case events.RunFinishedEvent:
		if r, ok := sink.(coremetrics.RunRecorder); ok {
			return r.RecordRun(coremetrics.RunSummary{
				RunID:      e.RunID,
				Controller: e.Controller,
				Steps:      e.Steps,
				KPI:        e.KPI,
				Elapsed:    e.Elapsed,
			})
		}
	}
	return nil
}
