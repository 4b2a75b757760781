package metrics

import (
	"fmt"

	"github.com/kilianp07/offgrid-dt/core/factory"
	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
	"github.com/kilianp07/offgrid-dt/infra/kpi"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	// The endpoint itself is served by StartPromServer on metrics.prometheus_addr.
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
	_ = coremetrics.RegisterMetricsSink("sqlite_kpi", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			Path            string `json:"path"`
			TimestepMinutes int    `json:"timestep_minutes"`
		}{TimestepMinutes: 15}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite_kpi: path is required")
		}
		return kpi.NewSQLiteStore(c.Path, c.TimestepMinutes)
	})
}
