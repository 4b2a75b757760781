package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/offgrid-dt/core/events"
	"github.com/kilianp07/offgrid-dt/core/logger"
	"github.com/kilianp07/offgrid-dt/core/runlog"
	"github.com/kilianp07/offgrid-dt/internal/eventbus"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// GuidancePublisher streams structured guidance to <prefix>/guidance and
// run summaries to <prefix>/runs.
type GuidancePublisher struct {
	pub    Publisher
	prefix string
}

func NewGuidancePublisher(pub Publisher, prefix string) *GuidancePublisher {
	if prefix == "" {
		prefix = "offgrid-dt"
	}
	return &GuidancePublisher{pub: pub, prefix: prefix}
}

func (g *GuidancePublisher) GuidanceTopic() string { return g.prefix + "/guidance" }
func (g *GuidancePublisher) RunTopic() string      { return g.prefix + "/runs" }

// AppendGuidance implements runlog.GuidanceSink.
func (g *GuidancePublisher) AppendGuidance(ctx context.Context, ev runlog.GuidanceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode guidance: %w", err)
	}
	return g.pub.Publish(g.GuidanceTopic(), b)
}

type runMessage struct {
	RunID       string  `json:"run_id"`
	Controller  string  `json:"controller"`
	Steps       int     `json:"steps"`
	CLSR        float64 `json:"clsr"`
	SAR         float64 `json:"sar"`
	Utilization float64 `json:"solar_utilization"`
	Blackout    int     `json:"blackout_minutes"`
	Throughput  float64 `json:"battery_throughput_kwh"`
	ElapsedMS   int64   `json:"elapsed_ms"`
}

// PublishRun sends the end-of-run KPIs.
func (g *GuidancePublisher) PublishRun(ev events.RunFinishedEvent) error {
	b, err := json.Marshal(runMessage{
		RunID:       ev.RunID,
		Controller:  ev.Controller,
		Steps:       ev.Steps,
		CLSR:        ev.KPI.CLSR,
		SAR:         ev.KPI.SAR,
		Utilization: ev.KPI.SolarUtilization,
		Blackout:    ev.KPI.BlackoutMinutes,
		Throughput:  ev.KPI.BatteryThroughputKWh,
		ElapsedMS:   ev.Elapsed.Milliseconds(),
	})
	if err != nil {
		return err
	}
	return g.pub.Publish(g.RunTopic(), b)
}

// Forward subscribes to bus and relays every step's guidance, and the run
// summary, to g. Failures are logged and never stop the relay. The returned
// channel is closed once the bus closes or ctx ends.
func Forward(ctx context.Context, bus eventbus.EventBus, g *GuidancePublisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || g == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		failed := 0
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					if failed > 0 {
						log.Warnf("guidance stream: %d publish failures", failed)
					}
					return
				}
				var err error
				switch e := ev.(type) {
				case events.StepEvent:
					err = g.AppendGuidance(ctx, runlog.GuidanceEvent{
						RunID:     e.RunID,
						Timestamp: e.Record.Timestamp,
						Step:      e.Record.Step,
						Guidance:  e.Record.Guidance,
					})
				case events.RunFinishedEvent:
					err = g.PublishRun(e)
				}
				if err != nil {
					failed++
					if failed == 1 {
						log.Warnf("guidance stream: %v", err)
					}
				}
			}
		}
	}()
	return done
}
