package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/offgrid-dt/core/battery"
	"github.com/kilianp07/offgrid-dt/core/control"
	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/events"
	"github.com/kilianp07/offgrid-dt/core/forecast"
	"github.com/kilianp07/offgrid-dt/core/guidance"
	"github.com/kilianp07/offgrid-dt/core/kpi"
	"github.com/kilianp07/offgrid-dt/core/logger"
	"github.com/kilianp07/offgrid-dt/core/matching"
	"github.com/kilianp07/offgrid-dt/core/model"
	"github.com/kilianp07/offgrid-dt/core/monitoring"
)

const (
	collaboratorPV       = "pv_forecast"
	collaboratorMeasured = "measured_demand"
	collaboratorEnhancer = "guidance_enhancer"

	guidanceOutlookMinutes = 120
)

// Engine runs one controller over a configured household.
type Engine struct {
	cfg  model.RunConfig
	opts Options
	log  logger.Logger
	bp   battery.Params

	fallbacks      int
	enhancerFailed bool
}

// New validates the configuration and fills optional collaborators. Nothing
// is fetched until Run.
func New(cfg model.RunConfig, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Controller == nil {
		return nil, errors.New("simulation: controller is required")
	}
	if opts.Store == nil {
		return nil, errors.New("simulation: record store is required")
	}
	if opts.Days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", model.ErrInvalidConfig, opts.Days)
	}
	if err := model.ValidateTemplates(opts.Templates); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(time.Hour)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.PVSource == "" {
		opts.PVSource = "synthetic"
		if opts.PV != nil {
			opts.PVSource = opts.PV.Name()
		}
	}
	if opts.DemandSource == "" {
		opts.DemandSource = "appliances"
		if opts.Measured != nil {
			opts.DemandSource = "measured"
		}
	}
	return &Engine{
		cfg:  cfg,
		opts: opts,
		log:  logger.OrNop(opts.Logger),
		bp: battery.Params{
			CapacityKWh:  cfg.BatteryCapacityKWh,
			ChargeEff:    cfg.ChargeEff,
			DischargeEff: cfg.DischargeEff,
			SoCMin:       cfg.SoCMin,
			SoCMax:       cfg.SoCMax,
		},
	}, nil
}

// RunID identifies the run in records, events and metrics.
func (e *Engine) RunID() string { return e.opts.RunID }

// Run simulates Days days. The context is only consulted between days and
// by collaborators; a day that has started always completes. Collaborator
// failures fall back to deterministic substitutes. A measured day of the
// wrong length or a failing record sink aborts the run.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	began := time.Now()
	cfg := e.cfg
	daySteps := cfg.StepsPerDay()
	total := daySteps * e.opts.Days
	dtH := cfg.TimestepHours()
	ctrl := e.opts.Controller

	sum := Summary{
		RunID:        e.opts.RunID,
		Start:        e.opts.Start,
		Controller:   ctrl.Name(),
		PVSource:     e.opts.PVSource,
		DemandSource: e.opts.DemandSource,
		Logs:         map[string]string{"records": e.opts.Store.Location()},
	}
	if gl, ok := e.opts.Store.(interface{ GuidanceLocation() string }); ok {
		sum.Logs["guidance"] = gl.GuidanceLocation()
	}
	e.log.Infow("simulation started", map[string]any{
		"run_id":     sum.RunID,
		"controller": sum.Controller,
		"days":       e.opts.Days,
		"seed":       e.opts.Seed,
		"demand":     sum.DemandSource,
	})

	pv, pvLabel, err := e.resolvePV(ctx, total)
	if err != nil {
		return sum, err
	}
	sum.PVSource = pvLabel

	rng := rand.New(rand.NewPCG(e.opts.Seed, e.opts.Seed))
	state := battery.State{SoC: cfg.SoCInit}
	var acc kpi.Accumulator
	var day dayState
	firstDay := make([]model.StepRecord, 0, daySteps)
	ts := time.Duration(cfg.TimestepMinutes) * time.Minute

	for step := 0; step < total; step++ {
		dayStep := step % daySteps
		if dayStep == 0 {
			if err := ctx.Err(); err != nil {
				sum.Steps = step
				sum.KPI = acc.Snapshot()
				return sum, err
			}
			day, err = e.startDay(ctx, step/daySteps, daySteps, rng)
			if err != nil {
				sum.Steps = step
				sum.KPI = acc.Snapshot()
				return sum, err
			}
			if day.index == 0 {
				sum.PlannedFirstDayKWh = e.plannedKWh(day, daySteps, dtH)
			}
		}

		pvNow := pv[step]
		outlook := make([]float64, cfg.HorizonSteps)
		copy(outlook, pv[step:min(total, step+cfg.HorizonSteps)])

		reqKW, critKW, window := day.demandAt(dayStep)
		dec := ctrl.Decide(cfg, control.Input{
			Step:           dayStep,
			SoC:            state.SoC,
			PVNowKW:        pvNow,
			PVForecastKW:   outlook,
			CriticalBaseKW: critKW,
			Available:      window,
			Remaining:      day.remaining,
		})

		// Capped by the energy above the reserve as well as the inverter, so
		// one step can never draw the bank below SoCMin.
		deliverable := battery.DeliverableKW(state, dtH, cfg.InverterMaxKW, e.bp)
		critServed := min(critKW, pvNow+deliverable)
		served, taskKW := day.admit(dec.Served, window)
		if day.measured != nil {
			taskKW = min(max(0, reqKW-critKW), max(0, pvNow+deliverable-critServed))
		}
		loadServed := critServed + taskKW

		net := pvNow - loadServed
		charge := min(max(0, net), cfg.InverterMaxKW)
		var discharge float64
		if net < 0 {
			discharge = min(-net, deliverable)
		}
		curtailed := max(0, pvNow-loadServed-charge)
		state = battery.UpdateSoC(state, charge, discharge, dtH, e.bp)

		day.progress(served)
		for _, d := range day.expire(dayStep + 1) {
			e.log.Debugf("task %s dropped on day %d with %d steps left", d.task.ID, day.index, d.remaining)
			e.publish(events.TaskDroppedEvent{
				RunID:          sum.RunID,
				Controller:     sum.Controller,
				Day:            day.index,
				Task:           d.task,
				RemainingSteps: d.remaining,
			})
		}

		g := guidance.Generate(cfg, guidance.Context{
			SoC:           state.SoC,
			PVNowKW:       pvNow,
			PVAvgNext2hKW: e.outlookAverage(outlook),
			CriticalKW:    critKW,
		}, taskKW, len(dec.Deferred))
		g = e.enhance(ctx, g)

		acc.Update(kpi.Step{
			DtH:              dtH,
			CritRequestedKW:  critKW,
			CritServedKW:     critServed,
			TotalRequestedKW: reqKW,
			ServedKW:         loadServed,
			PVKW:             pvNow,
			CurtailedKW:      curtailed,
			ThroughputKWh:    state.ThroughputKWh,
		})

		rec := model.StepRecord{
			Timestamp:        e.opts.Start.Add(time.Duration(step) * ts),
			Step:             step,
			PVNowKW:          pvNow,
			PVForecastKW:     outlook,
			SoC:              state.SoC,
			SoCMin:           cfg.SoCMin,
			SoCMax:           cfg.SoCMax,
			LoadRequestedKW:  reqKW,
			LoadServedKW:     loadServed,
			CritRequestedKW:  critKW,
			CritServedKW:     critServed,
			CurtailedSolarKW: curtailed,
			Advisory:         normalize(dec),
			Applied:          model.Applied{ServedTaskIDs: served, ChargeKW: charge, DischargeKW: discharge},
			Guidance:         g,
			KPI:              acc.Snapshot(),
		}
		if err := e.opts.Store.Append(ctx, rec); err != nil {
			sum.Steps = step
			sum.KPI = acc.Snapshot()
			return sum, fmt.Errorf("append step %d to %s: %w", step, e.opts.Store.Location(), err)
		}
		e.publish(events.StepEvent{RunID: sum.RunID, Controller: sum.Controller, Record: rec})
		if step < daySteps {
			firstDay = append(firstDay, rec)
		}
	}

	sum.Steps = total
	sum.KPI = acc.Snapshot()
	sum.DayAhead = matching.Compute(firstDay, e.opts.Templates, cfg)
	sum.Fallbacks = e.fallbacks
	sum.Elapsed = time.Since(began)
	e.publish(events.RunFinishedEvent{
		RunID:      sum.RunID,
		Controller: sum.Controller,
		Steps:      sum.Steps,
		KPI:        sum.KPI,
		Elapsed:    sum.Elapsed,
	})
	e.log.Infow("simulation finished", map[string]any{
		"run_id":           sum.RunID,
		"controller":       sum.Controller,
		"steps":            sum.Steps,
		"clsr":             sum.KPI.CLSR,
		"blackout_minutes": sum.KPI.BlackoutMinutes,
		"fallbacks":        sum.Fallbacks,
	})
	return sum, nil
}

// resolvePV fetches irradiance for the whole run once and aligns it on the
// step grid. A failing provider is replaced by the synthetic curve.
func (e *Engine) resolvePV(ctx context.Context, steps int) ([]float64, string, error) {
	label := e.opts.PVSource
	provider := forecast.WithFallback(e.opts.PV, forecast.Synthetic{}, func(name string, err error) {
		label = "synthetic (fallback from " + name + ")"
		e.fallback(collaboratorPV, err)
	})
	pts, err := provider.Irradiance(ctx, forecast.Request{
		Latitude:    e.cfg.Latitude,
		Longitude:   e.cfg.Longitude,
		Start:       e.opts.Start,
		Hours:       24 * e.opts.Days,
		StepMinutes: e.cfg.TimestepMinutes,
	})
	if err != nil {
		return nil, label, fmt.Errorf("resolve pv forecast: %w", err)
	}
	kw := forecast.ToPVPowerKW(pts, e.cfg.PVCapacityKW, e.cfg.PVEfficiency)
	return forecast.Resample(kw, steps), label, nil
}

func (e *Engine) startDay(ctx context.Context, index, daySteps int, rng *rand.Rand) (dayState, error) {
	if e.opts.Measured == nil {
		baseline, tasks := demand.BuildDailyTasks(e.opts.Templates, daySteps, rng)
		e.log.Debugf("day %d: %d tasks, critical baseline %.3f kW", index, len(tasks), baseline)
		e.publish(events.DayStartEvent{RunID: e.opts.RunID, Controller: e.opts.Controller.Name(), Day: index, Tasks: len(tasks)})
		return newTaskDay(index, baseline, tasks), nil
	}

	md, err := e.opts.Measured.Day(ctx, index, daySteps)
	if err != nil && !errors.Is(err, demand.ErrMeasuredLength) {
		e.fallback(collaboratorMeasured, fmt.Errorf("day %d: %w", index, err))
		md, err = demand.BaselineDay(e.opts.Templates, daySteps), nil
	}
	if err == nil {
		err = md.Validate(daySteps)
	}
	if err != nil {
		return dayState{}, fmt.Errorf("measured demand day %d: %w", index, err)
	}
	e.log.Debugf("day %d: measured demand %.3f kWh", index, md.EnergyKWh(e.cfg.TimestepHours()))
	e.publish(events.DayStartEvent{RunID: e.opts.RunID, Controller: e.opts.Controller.Name(), Day: index, Measured: true})
	return newMeasuredDay(index, md), nil
}

func (e *Engine) plannedKWh(d dayState, daySteps int, dtH float64) float64 {
	if d.measured != nil {
		return d.measured.EnergyKWh(dtH)
	}
	return demand.PlannedDailyEnergyKWh(e.opts.Templates, daySteps, dtH)
}

// outlookAverage is the mean PV over the next two hours of the window.
func (e *Engine) outlookAverage(outlook []float64) float64 {
	n := min(len(outlook), max(1, guidanceOutlookMinutes/e.cfg.TimestepMinutes))
	if n == 0 {
		return 0
	}
	return floats.Sum(outlook[:n]) / float64(n)
}

// enhance runs the optional enhancer. Only the first failure of a run is
// reported as a fallback; later ones are logged at debug level.
func (e *Engine) enhance(ctx context.Context, g model.Guidance) model.Guidance {
	out, err := guidance.Enhance(ctx, e.opts.Enhancer, g, e.cfg.LocationName)
	if err != nil {
		if !e.enhancerFailed {
			e.enhancerFailed = true
			e.fallback(collaboratorEnhancer, err)
		} else {
			e.log.Debugf("guidance enhancer failed again: %v", err)
		}
	}
	return out
}

func (e *Engine) fallback(collaborator string, err error) {
	e.fallbacks++
	e.log.Warnf("%s failed, using fallback: %v", collaborator, err)
	monitoring.CaptureRunIssue(monitoring.RunIssue{
		RunID:        e.opts.RunID,
		Controller:   e.opts.Controller.Name(),
		Collaborator: collaborator,
		Err:          err,
	})
	e.publish(events.FallbackEvent{RunID: e.opts.RunID, Collaborator: collaborator, Err: err, Time: time.Now()})
}

func (e *Engine) publish(ev any) {
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(ev)
	}
}

func normalize(d model.Decision) model.Decision {
	for _, s := range []*[]string{&d.Served, &d.Deferred, &d.Shed} {
		if *s == nil {
			*s = []string{}
		}
	}
	return d
}
