// Package app wires configuration into simulation runs and their
// observers.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/offgrid-dt/config"
	"github.com/kilianp07/offgrid-dt/core/control"
	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/factory"
	"github.com/kilianp07/offgrid-dt/core/forecast"
	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
	coremon "github.com/kilianp07/offgrid-dt/core/monitoring"
	"github.com/kilianp07/offgrid-dt/core/runlog"
	"github.com/kilianp07/offgrid-dt/core/simulation"
	infrademand "github.com/kilianp07/offgrid-dt/infra/demand"
	infraforecast "github.com/kilianp07/offgrid-dt/infra/forecast"
	"github.com/kilianp07/offgrid-dt/infra/logger"
	"github.com/kilianp07/offgrid-dt/infra/metrics"
	"github.com/kilianp07/offgrid-dt/infra/monitoring"
	"github.com/kilianp07/offgrid-dt/infra/mqtt"
	"github.com/kilianp07/offgrid-dt/internal/eventbus"
)

// Service runs simulations described by one configuration. Metrics sinks,
// the MQTT guidance stream and the Prometheus endpoint are shared by every
// run of the service.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	pv       forecast.Provider
	measured demand.MeasuredProvider
	sink     coremetrics.MetricsSink
	mqtt     *mqtt.PahoClient
	guidance *mqtt.GuidancePublisher
	stopProm context.CancelFunc
}

// New creates a Service from the configuration. Collaborators that need a
// network connection are set up here so misconfiguration fails early.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(sinkModules(cfg))
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc := &Service{cfg: cfg, log: logg, sink: sink, pv: forecast.Cached(newPVProvider(cfg.Forecast))}
	if cfg.Simulation.DemandMode == config.DemandMeasured {
		svc.measured = infrademand.NewCSVProvider(cfg.Simulation.MeasuredCSV)
	}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mqtt = client
		svc.guidance = mqtt.NewGuidancePublisher(client, cfg.MQTT.TopicPrefix)
	}
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		svc.stopProm = cancel
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil, logg); err != nil {
				logg.Errorf("prom server: %v", err)
			}
		}()
	}
	return svc, nil
}

// sinkModules hands the simulation timestep to sinks that integrate power.
func sinkModules(cfg *config.Config) []factory.ModuleConfig {
	out := make([]factory.ModuleConfig, len(cfg.Metrics.Sinks))
	for i, m := range cfg.Metrics.Sinks {
		if m.Type == "sqlite_kpi" {
			conf := make(map[string]any, len(m.Conf)+1)
			for k, v := range m.Conf {
				conf[k] = v
			}
			conf["timestep_minutes"] = cfg.System.TimestepMinutes
			m.Conf = conf
		}
		out[i] = m
	}
	return out
}

func newPVProvider(cfg config.ForecastConfig) forecast.Provider {
	switch cfg.Provider {
	case config.ProviderNASA:
		return infraforecast.NewNASAPower(cfg.NASABaseURL, cfg.Timeout())
	case config.ProviderOpenWeather:
		return infraforecast.NewOpenWeather(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.Timeout())
	default:
		return forecast.Synthetic{PeakGHIWm2: cfg.SyntheticPeakGHI}
	}
}

// Run simulates the configured controller.
func (s *Service) Run(ctx context.Context) (simulation.Summary, error) {
	ctrl, err := control.New(s.cfg.Simulation.ControllerModule())
	if err != nil {
		return simulation.Summary{}, err
	}
	return s.runOne(ctx, ctrl, false)
}

// Compare simulates every registered controller in registry order on the
// same household, sky and seed.
func (s *Service) Compare(ctx context.Context) ([]simulation.Summary, error) {
	var out []simulation.Summary
	for _, name := range control.Names() {
		mod := factory.ModuleConfig{Type: name}
		if name == s.cfg.Simulation.Controller {
			mod = s.cfg.Simulation.ControllerModule()
		}
		ctrl, err := control.New(mod)
		if err != nil {
			return out, err
		}
		sum, err := s.runOne(ctx, ctrl, true)
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) runOne(ctx context.Context, ctrl control.Controller, comparing bool) (simulation.Summary, error) {
	sim := s.cfg.Simulation
	start, err := sim.StartTime()
	if err != nil {
		return simulation.Summary{}, err
	}
	runID := uuid.NewString()
	storeCfg, err := s.storeModule(ctrl.Name(), runID, comparing)
	if err != nil {
		return simulation.Summary{}, err
	}
	store, err := runlog.NewStore(storeCfg)
	if err != nil {
		return simulation.Summary{}, fmt.Errorf("record store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			s.log.Warnf("close record store: %v", cerr)
		}
	}()

	bus := newRunBus()
	obsCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collected := metrics.StartEventCollector(obsCtx, bus, s.sink, logger.New("metrics"))
	forwarded := mqtt.Forward(obsCtx, bus, s.guidance, logger.New("guidance-stream"))

	opts := simulation.Options{
		Controller: ctrl,
		Templates:  s.cfg.Templates(),
		PV:         s.pv,
		Days:       sim.Days,
		Seed:       sim.Seed,
		Start:      start,
		RunID:      runID,
		Store:      store,
		Bus:        bus,
		Logger:     logger.New("simulation"),
	}
	if s.measured != nil {
		opts.Measured = s.measured
		opts.DemandSource = "measured (" + filepath.Base(sim.MeasuredCSV) + ")"
	}
	eng, err := simulation.New(s.cfg.System, opts)
	if err != nil {
		bus.Close()
		return simulation.Summary{}, err
	}
	sum, runErr := eng.Run(ctx)
	bus.Close()
	<-collected
	<-forwarded
	if runErr != nil {
		coremon.CaptureRunIssue(coremon.RunIssue{RunID: runID, Controller: ctrl.Name(), Fatal: true, Err: runErr})
		return sum, runErr
	}
	if n := bus.Dropped(); n > 0 {
		s.log.Warnf("run %s: %d events dropped by observers", runID, n)
	}
	return sum, nil
}

// observerBuffer bounds what each observer may lag behind the engine.
// Events beyond it are dropped and counted, so memory stays flat however
// long the run is.
const observerBuffer = 4096

func newRunBus() *eventbus.Bus { return eventbus.NewWithBuffer(observerBuffer) }

// storeModule derives the record store of one run. Without an explicit
// path every run gets its own files under the output directory; with one,
// comparison runs get the controller name appended.
func (s *Service) storeModule(controller, runID string, comparing bool) (factory.ModuleConfig, error) {
	lc := s.cfg.Logging
	outDir := s.cfg.Simulation.OutDir
	base := fmt.Sprintf("%s_%s", controller, runID[:8])
	path := lc.Path
	conf := map[string]any{
		"run_id":       runID,
		"max_size_mb":  lc.MaxSizeMB,
		"max_backups":  lc.MaxBackups,
		"max_age_days": lc.MaxAgeDays,
	}
	switch lc.Backend {
	case "memory":
		return factory.ModuleConfig{Type: lc.Backend, Conf: conf}, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(outDir, "runs.db")
		}
	case "csv":
		if path == "" {
			path = filepath.Join(outDir, base+"_state.csv")
		} else if comparing {
			path = withSuffix(path, controller)
		}
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		stem = strings.TrimSuffix(stem, "_state")
		conf["guidance_path"] = stem + "_guidance.jsonl"
	default:
		if path == "" {
			path = filepath.Join(outDir, base+".jsonl")
		} else if comparing {
			path = withSuffix(path, controller)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return factory.ModuleConfig{}, err
	}
	conf["path"] = path
	return factory.ModuleConfig{Type: lc.Backend, Conf: conf}, nil
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}

// Close releases the connections held by the service.
func (s *Service) Close() error {
	if s.stopProm != nil {
		s.stopProm()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return nil
}
