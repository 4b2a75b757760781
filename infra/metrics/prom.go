package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
)

// PromSink exposes the latest state of every running controller as gauges
// and counts steps, dropped tasks, fallbacks and runs.
type PromSink struct {
	soc         *prometheus.GaugeVec
	pv          *prometheus.GaugeVec
	requested   *prometheus.GaugeVec
	served      *prometheus.GaugeVec
	critServed  *prometheus.GaugeVec
	curtailed   *prometheus.GaugeVec
	clsr        *prometheus.GaugeVec
	sar         *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	blackout    *prometheus.GaugeVec
	throughput  *prometheus.GaugeVec
	steps       *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewPromSink registers the twin metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	gauges := []struct {
		dst  **prometheus.GaugeVec
		name string
		help string
	}{
		{&s.soc, "twin_soc_ratio", "Battery state of charge after the last step"},
		{&s.pv, "twin_pv_kw", "PV power at the last step"},
		{&s.requested, "twin_load_requested_kw", "Requested load at the last step"},
		{&s.served, "twin_load_served_kw", "Served load at the last step"},
		{&s.critServed, "twin_critical_served_kw", "Served critical load at the last step"},
		{&s.curtailed, "twin_curtailed_kw", "Curtailed PV at the last step"},
		{&s.clsr, "twin_clsr_ratio", "Critical load service ratio so far"},
		{&s.sar, "twin_sar_ratio", "Solar autonomy ratio so far"},
		{&s.utilization, "twin_solar_utilization_ratio", "Share of generated PV that was not curtailed"},
		{&s.blackout, "twin_blackout_minutes", "Minutes with unserved critical load so far"},
		{&s.throughput, "twin_battery_throughput_kwh", "Cumulative battery throughput"},
	}
	for _, g := range gauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: g.name, Help: g.help}, []string{"controller"})
		if *g.dst, err = register(reg, vec); err != nil {
			return nil, err
		}
	}
	if s.steps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twin_steps_total",
		Help: "Simulated timesteps",
	}, []string{"controller"})); err != nil {
		return nil, err
	}
	if s.dropped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twin_tasks_dropped_total",
		Help: "Tasks that left their window unfinished",
	}, []string{"controller", "category", "must_complete"})); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twin_fallbacks_total",
		Help: "Collaborator failures replaced by a fallback",
	}, []string{"collaborator"})); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twin_runs_total",
		Help: "Completed simulation runs",
	}, []string{"controller"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twin_run_duration_seconds",
		Help:    "Wall-clock duration of a run",
		Buckets: prometheus.DefBuckets,
	}, []string{"controller"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStep updates the gauges for the observation's controller.
func (s *PromSink) RecordStep(obs coremetrics.StepObservation) error {
	c := obs.Controller
	r := obs.Record
	s.soc.WithLabelValues(c).Set(r.SoC)
	s.pv.WithLabelValues(c).Set(r.PVNowKW)
	s.requested.WithLabelValues(c).Set(r.LoadRequestedKW)
	s.served.WithLabelValues(c).Set(r.LoadServedKW)
	s.critServed.WithLabelValues(c).Set(r.CritServedKW)
	s.curtailed.WithLabelValues(c).Set(r.CurtailedSolarKW)
	s.clsr.WithLabelValues(c).Set(r.KPI.CLSR)
	s.sar.WithLabelValues(c).Set(r.KPI.SAR)
	s.utilization.WithLabelValues(c).Set(r.KPI.SolarUtilization)
	s.blackout.WithLabelValues(c).Set(float64(r.KPI.BlackoutMinutes))
	s.throughput.WithLabelValues(c).Set(r.KPI.BatteryThroughputKWh)
	s.steps.WithLabelValues(c).Inc()
	return nil
}

// RecordTaskDrop increments the dropped task counter.
func (s *PromSink) RecordTaskDrop(ev coremetrics.TaskDrop) error {
	s.dropped.WithLabelValues(ev.Controller, string(ev.Category), strconv.FormatBool(ev.MustComplete)).Inc()
	return nil
}

// RecordFallback increments the fallback counter.
func (s *PromSink) RecordFallback(ev coremetrics.Fallback) error {
	s.fallbacks.WithLabelValues(ev.Collaborator).Inc()
	return nil
}

// RecordRun counts the run and observes its duration.
func (s *PromSink) RecordRun(sum coremetrics.RunSummary) error {
	s.runs.WithLabelValues(sum.Controller).Inc()
	s.duration.WithLabelValues(sum.Controller).Observe(sum.Elapsed.Seconds())
	return nil
}
