package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
	"github.com/kilianp07/offgrid-dt/infra/logger"
)

// InfluxSink writes twin observations to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordStep writes one twin_step point stamped with the simulated time.
func (s *InfluxSink) RecordStep(obs coremetrics.StepObservation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := obs.Record
	p := write.NewPointWithMeasurement("twin_step").
		AddTag("run_id", obs.RunID).
		AddTag("controller", obs.Controller).
		AddTag("risk_level", string(r.Guidance.RiskLevel)).
		AddField("step", r.Step).
		AddField("pv_kw", round3(r.PVNowKW)).
		AddField("soc", round3(r.SoC)).
		AddField("load_requested_kw", round3(r.LoadRequestedKW)).
		AddField("load_served_kw", round3(r.LoadServedKW)).
		AddField("crit_requested_kw", round3(r.CritRequestedKW)).
		AddField("crit_served_kw", round3(r.CritServedKW)).
		AddField("curtailed_kw", round3(r.CurtailedSolarKW)).
		AddField("charge_kw", round3(r.Applied.ChargeKW)).
		AddField("discharge_kw", round3(r.Applied.DischargeKW)).
		AddField("clsr", round3(r.KPI.CLSR)).
		AddField("sar", round3(r.KPI.SAR)).
		AddField("solar_utilization", round3(r.KPI.SolarUtilization)).
		AddField("blackout_minutes", r.KPI.BlackoutMinutes).
		AddField("throughput_kwh", round3(r.KPI.BatteryThroughputKWh)).
		SetTime(r.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTaskDrop records a task that left its day unfinished.
func (s *InfluxSink) RecordTaskDrop(ev coremetrics.TaskDrop) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("twin_task_dropped").
		AddTag("run_id", ev.RunID).
		AddTag("controller", ev.Controller).
		AddTag("appliance_id", ev.ApplianceID).
		AddTag("category", string(ev.Category)).
		AddTag("must_complete", strconv.FormatBool(ev.MustComplete)).
		AddField("task_id", ev.TaskID).
		AddField("remaining_steps", ev.Remaining).
		AddField("day", ev.Day).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFallback records a collaborator fallback.
func (s *InfluxSink) RecordFallback(ev coremetrics.Fallback) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("twin_fallback").
		AddTag("run_id", ev.RunID).
		AddTag("collaborator", ev.Collaborator).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun records the final KPIs of a run.
func (s *InfluxSink) RecordRun(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("twin_run").
		AddTag("run_id", sum.RunID).
		AddTag("controller", sum.Controller).
		AddField("steps", sum.Steps).
		AddField("clsr", round3(sum.KPI.CLSR)).
		AddField("sar", round3(sum.KPI.SAR)).
		AddField("solar_utilization", round3(sum.KPI.SolarUtilization)).
		AddField("blackout_minutes", sum.KPI.BlackoutMinutes).
		AddField("throughput_kwh", round3(sum.KPI.BatteryThroughputKWh)).
		AddField("elapsed_ms", sum.Elapsed.Milliseconds()).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
