package metrics

import "github.com/kilianp07/offgrid-dt/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr, when set, exposes /metrics on this address while runs execute.
	PrometheusAddr string `json:"prometheus_addr"`
}
