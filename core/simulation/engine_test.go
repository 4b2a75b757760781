package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/offgrid-dt/core/control"
	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/events"
	"github.com/kilianp07/offgrid-dt/core/forecast"
	"github.com/kilianp07/offgrid-dt/core/guidance"
	"github.com/kilianp07/offgrid-dt/core/model"
	"github.com/kilianp07/offgrid-dt/core/monitoring"
	"github.com/kilianp07/offgrid-dt/core/runlog"
	"github.com/kilianp07/offgrid-dt/internal/eventbus"
)

var testStart = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// constantPV reports the same irradiance at every hour.
type constantPV struct{ ghi float64 }

func (constantPV) Name() string { return "constant" }
func (c constantPV) Irradiance(_ context.Context, req forecast.Request) ([]forecast.IrradiancePoint, error) {
	out := make([]forecast.IrradiancePoint, req.Hours)
	for i := range out {
		out[i] = forecast.IrradiancePoint{Time: req.Start.Add(time.Duration(i) * time.Hour), GHIWm2: c.ghi}
	}
	return out, nil
}

type brokenPV struct{}

func (brokenPV) Name() string { return "broken" }
func (brokenPV) Irradiance(context.Context, forecast.Request) ([]forecast.IrradiancePoint, error) {
	return nil, errors.New("connection refused")
}

// scripted serves every available task at the listed day steps and defers
// everything otherwise.
type scripted struct{ serveAt map[int]bool }

func (scripted) Name() string { return "scripted" }
func (s scripted) Decide(_ model.RunConfig, in control.Input) model.Decision {
	var d model.Decision
	for _, t := range in.Available {
		if s.serveAt[in.Step] {
			d.Served = append(d.Served, t.ID)
		} else {
			d.Deferred = append(d.Deferred, t.ID)
		}
	}
	return d
}

// ordered serves exactly the listed ids, in order, at the given day steps.
type ordered struct{ at map[int][]string }

func (ordered) Name() string { return "ordered" }
func (o ordered) Decide(_ model.RunConfig, in control.Input) model.Decision {
	return model.Decision{Served: o.at[in.Step]}
}

type measuredFunc func(ctx context.Context, day, steps int) (demand.MeasuredDay, error)

func (f measuredFunc) Day(ctx context.Context, day, steps int) (demand.MeasuredDay, error) {
	return f(ctx, day, steps)
}

type failingSink struct{}

func (failingSink) Append(context.Context, model.StepRecord) error { return errors.New("disk full") }
func (failingSink) Location() string                               { return "broken.csv" }
func (failingSink) Close() error                                   { return nil }

func run(t *testing.T, cfg model.RunConfig, opts Options) (Summary, []model.StepRecord) {
	t.Helper()
	store := runlog.NewMemoryStore()
	opts.Store = store
	if opts.Start.IsZero() {
		opts.Start = testStart
	}
	eng, err := New(cfg, opts)
	require.NoError(t, err)
	sum, err := eng.Run(context.Background())
	require.NoError(t, err)
	return sum, store.Records()
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := model.DefaultRunConfig()
	opts := Options{Controller: control.NewForecastHeuristic(), Templates: demand.DemoAppliances(), Days: 2, Seed: 42, RunID: "r"}
	_, a := run(t, cfg, opts)
	_, b := run(t, cfg, opts)
	require.Len(t, a, 2*96)
	assert.Equal(t, a, b)
}

func TestRunInvariantsForEveryController(t *testing.T) {
	cfg := model.DefaultRunConfig()
	for _, ctrl := range control.All() {
		t.Run(ctrl.Name(), func(t *testing.T) {
			sum, recs := run(t, cfg, Options{Controller: ctrl, Templates: demand.DemoAppliances(), Days: 3, Seed: 7})
			require.Len(t, recs, 3*96)
			assert.Equal(t, 3*96, sum.Steps)
			assert.Equal(t, ctrl.Name(), sum.Controller)

			prevThroughput := 0.0
			for i, r := range recs {
				if r.SoC < cfg.SoCMin-1e-12 || r.SoC > cfg.SoCMax+1e-12 {
					t.Fatalf("step %d: soc %f out of bounds", i, r.SoC)
				}
				if r.KPI.BatteryThroughputKWh < prevThroughput {
					t.Fatalf("step %d: throughput decreased", i)
				}
				prevThroughput = r.KPI.BatteryThroughputKWh
				for name, v := range map[string]float64{"clsr": r.KPI.CLSR, "sar": r.KPI.SAR, "util": r.KPI.SolarUtilization} {
					if v < 0 || v > 1 {
						t.Fatalf("step %d: %s=%f outside [0,1]", i, name, v)
					}
				}
				assert.LessOrEqual(t, r.CritServedKW, r.CritRequestedKW+1e-12)
				assert.Equal(t, cfg.SoCMin, r.SoCMin)
				assert.Equal(t, cfg.SoCMax, r.SoCMax)
				require.Len(t, r.PVForecastKW, cfg.HorizonSteps)
				assert.Equal(t, r.PVNowKW, r.PVForecastKW[0])
				assert.Equal(t, testStart.Add(time.Duration(i*15)*time.Minute), r.Timestamp)
			}
			// the window past the last step is zero-padded
			for _, v := range recs[len(recs)-1].PVForecastKW[1:] {
				assert.Zero(t, v)
			}
		})
	}
}

func TestSingleStepTasksServedAtMostOnce(t *testing.T) {
	cfg := model.DefaultRunConfig()
	templates := []model.ApplianceTemplate{
		{ID: "light", Category: model.Critical, PowerW: 100, DurationSteps: 1},
		{ID: "phone", Category: model.Deferrable, PowerW: 20, DurationSteps: 1, DailyQuotaSteps: 3, LatestEndStep: 96},
	}
	_, recs := run(t, cfg, Options{Controller: control.Naive{}, Templates: templates, Days: 2, Seed: 3})
	for day := 0; day < 2; day++ {
		counts := map[string]int{}
		for _, r := range recs[day*96 : (day+1)*96] {
			for _, id := range r.Applied.ServedTaskIDs {
				counts[id]++
			}
		}
		assert.Len(t, counts, 3, "day %d", day)
		for id, n := range counts {
			assert.Equal(t, 1, n, "day %d task %s", day, id)
		}
	}
}

func TestMultiStepTaskIsNotPreempted(t *testing.T) {
	cfg := model.DefaultRunConfig()
	templates := []model.ApplianceTemplate{
		{ID: "wash", Category: model.Flexible, PowerW: 600, DurationSteps: 4, LatestEndStep: 96},
	}
	_, recs := run(t, cfg, Options{
		Controller: scripted{serveAt: map[int]bool{10: true}},
		Templates:  templates,
		PV:         constantPV{ghi: 1000},
		Days:       1,
	})
	assert.Empty(t, recs[9].Applied.ServedTaskIDs)
	for k := 10; k < 14; k++ {
		assert.Equal(t, []string{"wash_day"}, recs[k].Applied.ServedTaskIDs, "step %d", k)
	}
	// the controller asked to defer it on every later step
	for k := 11; k < 14; k++ {
		assert.Contains(t, recs[k].Advisory.Deferred, "wash_day", "step %d", k)
	}
	assert.Empty(t, recs[14].Applied.ServedTaskIDs)
}

func TestMultiStepStartEndsAdmission(t *testing.T) {
	cfg := model.DefaultRunConfig()
	templates := []model.ApplianceTemplate{
		{ID: "pump", Category: model.Flexible, PowerW: 750, DurationSteps: 4, LatestEndStep: 96},
		{ID: "wash", Category: model.Flexible, PowerW: 600, DurationSteps: 4, LatestEndStep: 96},
		{ID: "phone", Category: model.Deferrable, PowerW: 20, DurationSteps: 1, DailyQuotaSteps: 1, LatestEndStep: 96},
	}
	_, recs := run(t, cfg, Options{
		Controller: ordered{at: map[int][]string{
			9:  {"phone_quota_0", "wash_day", "pump_day"},
			20: {"pump_day", "phone_quota_0"},
		}},
		Templates: templates,
		PV:        constantPV{ghi: 1000},
		Days:      1,
		Seed:      5,
	})
	// single-step tasks listed before the multi-step one still run
	assert.Equal(t, []string{"phone_quota_0", "wash_day"}, recs[9].Applied.ServedTaskIDs)
	assert.InDelta(t, 0.62, recs[9].LoadServedKW-recs[9].CritServedKW, 1e-9)
	for k := 10; k < 13; k++ {
		assert.Equal(t, []string{"wash_day"}, recs[k].Applied.ServedTaskIDs, "step %d", k)
	}
	assert.Empty(t, recs[13].Applied.ServedTaskIDs)
	assert.Equal(t, []string{"pump_day"}, recs[20].Applied.ServedTaskIDs)
}

func TestNothingAfterMultiStepIsServed(t *testing.T) {
	cfg := model.DefaultRunConfig()
	templates := []model.ApplianceTemplate{
		{ID: "wash", Category: model.Flexible, PowerW: 600, DurationSteps: 4, LatestEndStep: 96},
		{ID: "phone", Category: model.Deferrable, PowerW: 20, DurationSteps: 1, DailyQuotaSteps: 1, LatestEndStep: 96},
	}
	_, recs := run(t, cfg, Options{
		Controller: ordered{at: map[int][]string{10: {"wash_day", "phone_quota_0"}}},
		Templates:  templates,
		PV:         constantPV{ghi: 1000},
		Days:       1,
	})
	assert.Equal(t, []string{"wash_day"}, recs[10].Applied.ServedTaskIDs)
	for _, r := range recs {
		assert.NotContains(t, r.Applied.ServedTaskIDs, "phone_quota_0", "step %d", r.Step)
	}
}

func TestBlackoutWholeDay(t *testing.T) {
	cfg := model.DefaultRunConfig()
	cfg.SoCInit = cfg.SoCMin + 1e-6
	templates := []model.ApplianceTemplate{{ID: "fridge", Category: model.Critical, PowerW: 1000, DurationSteps: 1}}
	sum, recs := run(t, cfg, Options{Controller: control.Naive{}, Templates: templates, PV: constantPV{}, Days: 1})
	assert.Equal(t, 1440, sum.KPI.BlackoutMinutes)
	assert.Equal(t, 1440, recs[len(recs)-1].KPI.BlackoutMinutes)
	assert.InDelta(t, 0.0, sum.KPI.CLSR, 1e-3)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.SoC, cfg.SoCMin)
	}
}

func TestSummaryCarriesDayAheadAndLabels(t *testing.T) {
	cfg := model.DefaultRunConfig()
	templates := demand.DemoAppliances()
	sum, _ := run(t, cfg, Options{Controller: control.RuleBased{}, Templates: templates, Days: 2, Seed: 1})
	assert.Equal(t, "synthetic", sum.PVSource)
	assert.Equal(t, "appliances", sum.DemandSource)
	assert.Equal(t, testStart, sum.Start)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, "memory", sum.Logs["records"])
	assert.InDelta(t, demand.PlannedDailyEnergyKWh(templates, 96, 0.25), sum.PlannedFirstDayKWh, 1e-9)
	assert.Len(t, sum.DayAhead.Advisories, len(templates))
	assert.Equal(t, 96, sum.DayAhead.StepsPerDay)
	assert.Zero(t, sum.Fallbacks)
}

type issueRecorder struct{ issues []monitoring.RunIssue }

func (r *issueRecorder) CaptureException(error, map[string]string) {}
func (r *issueRecorder) CaptureRunIssue(i monitoring.RunIssue)     { r.issues = append(r.issues, i) }
func (r *issueRecorder) Recover()                                  {}
func (r *issueRecorder) Flush(time.Duration)                       {}

func TestFallbackReachesMonitor(t *testing.T) {
	rec := &issueRecorder{}
	monitoring.Init(rec)
	defer monitoring.Init(nil)

	run(t, model.DefaultRunConfig(), Options{Controller: control.Naive{}, Templates: demand.DemoAppliances(), PV: brokenPV{}, Days: 1, RunID: "run-7"})
	require.Len(t, rec.issues, 1)
	issue := rec.issues[0]
	assert.Equal(t, "run-7", issue.RunID)
	assert.Equal(t, "naive", issue.Controller)
	assert.Equal(t, collaboratorPV, issue.Collaborator)
	assert.False(t, issue.Fatal)
}

func TestPVFallbackIsReported(t *testing.T) {
	bus := eventbus.NewWithBuffer(1024)
	sub := bus.Subscribe()
	sum, recs := run(t, model.DefaultRunConfig(), Options{
		Controller: control.Naive{},
		Templates:  demand.DemoAppliances(),
		PV:         brokenPV{},
		Days:       1,
		Bus:        bus,
	})
	bus.Close()
	assert.Equal(t, "synthetic (fallback from broken)", sum.PVSource)
	assert.Equal(t, 1, sum.Fallbacks)
	assert.Greater(t, recs[48].PVNowKW, 0.0)

	var fallbacks, steps, days, finished int
	for ev := range sub {
		switch e := ev.(type) {
		case events.FallbackEvent:
			fallbacks++
			assert.Equal(t, collaboratorPV, e.Collaborator)
		case events.StepEvent:
			steps++
		case events.DayStartEvent:
			days++
		case events.RunFinishedEvent:
			finished++
		}
	}
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, 96, steps)
	assert.Equal(t, 1, days)
	assert.Equal(t, 1, finished)
}

func TestExpiredTasksAreDropped(t *testing.T) {
	bus := eventbus.NewWithBuffer(1024)
	sub := bus.Subscribe()
	templates := []model.ApplianceTemplate{
		{ID: "iron", Category: model.Deferrable, PowerW: 1000, DurationSteps: 2, EarliestStartStep: 32, LatestEndStep: 40},
	}
	run(t, model.DefaultRunConfig(), Options{Controller: scripted{}, Templates: templates, Days: 1, Bus: bus})
	bus.Close()
	var dropped []events.TaskDroppedEvent
	for ev := range sub {
		if d, ok := ev.(events.TaskDroppedEvent); ok {
			dropped = append(dropped, d)
		}
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, "iron_day", dropped[0].Task.ID)
	assert.Equal(t, 2, dropped[0].RemainingSteps)
}

func TestMeasuredMode(t *testing.T) {
	cfg := model.DefaultRunConfig()
	provider := measuredFunc(func(_ context.Context, _ int, steps int) (demand.MeasuredDay, error) {
		d := demand.MeasuredDay{TotalKW: make([]float64, steps), CriticalKW: make([]float64, steps)}
		for i := range d.TotalKW {
			d.TotalKW[i] = 0.5
			d.CriticalKW[i] = 0.2
		}
		return d, nil
	})
	sum, recs := run(t, cfg, Options{Controller: control.Naive{}, Measured: provider, Days: 2})
	assert.Equal(t, "measured", sum.DemandSource)
	assert.InDelta(t, 12.0, sum.PlannedFirstDayKWh, 1e-9)
	for _, r := range recs {
		assert.Equal(t, 0.5, r.LoadRequestedKW)
		assert.Equal(t, 0.2, r.CritRequestedKW)
		assert.Empty(t, r.Applied.ServedTaskIDs)
		assert.LessOrEqual(t, r.LoadServedKW, r.LoadRequestedKW+1e-12)
	}
}

func TestMeasuredLengthMismatchIsFatal(t *testing.T) {
	provider := measuredFunc(func(_ context.Context, day int, steps int) (demand.MeasuredDay, error) {
		n := steps
		if day == 1 {
			n = steps - 1
		}
		return demand.MeasuredDay{TotalKW: make([]float64, n), CriticalKW: make([]float64, n)}, nil
	})
	store := runlog.NewMemoryStore()
	eng, err := New(model.DefaultRunConfig(), Options{Controller: control.Naive{}, Measured: provider, Days: 3, Store: store, Start: testStart})
	require.NoError(t, err)
	sum, err := eng.Run(context.Background())
	require.ErrorIs(t, err, demand.ErrMeasuredLength)
	assert.Equal(t, 96, sum.Steps)
	assert.Len(t, store.Records(), 96)
}

func TestMeasuredFetchFailureFallsBackToBaseline(t *testing.T) {
	provider := measuredFunc(func(context.Context, int, int) (demand.MeasuredDay, error) {
		return demand.MeasuredDay{}, errors.New("file missing")
	})
	templates := []model.ApplianceTemplate{
		{ID: "fridge", Category: model.Critical, PowerW: 150, DurationSteps: 1},
		{ID: "wash", Category: model.Flexible, PowerW: 600, DurationSteps: 4, LatestEndStep: 96},
	}
	sum, recs := run(t, model.DefaultRunConfig(), Options{Controller: control.Naive{}, Measured: provider, Templates: templates, Days: 2})
	assert.Equal(t, 2, sum.Fallbacks)
	for _, r := range recs {
		assert.InDelta(t, 0.15, r.LoadRequestedKW, 1e-12)
		assert.InDelta(t, 0.15, r.CritRequestedKW, 1e-12)
	}
}

func TestEnhancerFailureKeepsGuidance(t *testing.T) {
	calls := 0
	enh := guidance.EnhancerFunc(func(context.Context, model.Guidance, string) (string, error) {
		calls++
		return "", errors.New("quota exceeded")
	})
	sum, recs := run(t, model.DefaultRunConfig(), Options{Controller: control.Naive{}, Templates: demand.DemoAppliances(), Days: 1, Enhancer: enh})
	assert.Equal(t, 96, calls)
	assert.Equal(t, 1, sum.Fallbacks)
	assert.NotEmpty(t, recs[0].Guidance.Explanation)
}

func TestEnhancerRewritesExplanation(t *testing.T) {
	enh := guidance.EnhancerFunc(func(_ context.Context, g model.Guidance, household string) (string, error) {
		return household + ": " + g.Headline, nil
	})
	_, recs := run(t, model.DefaultRunConfig(), Options{Controller: control.Naive{}, Templates: demand.DemoAppliances(), Days: 1, Enhancer: enh})
	assert.Equal(t, "Demo site: "+recs[0].Guidance.Headline, recs[0].Guidance.Explanation)
}

func TestRunFailsWhenStoreFails(t *testing.T) {
	eng, err := New(model.DefaultRunConfig(), Options{Controller: control.Naive{}, Days: 1, Store: failingSink{}})
	require.NoError(t, err)
	_, err = eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.csv")
}

func TestRunStopsBetweenDaysOnCancel(t *testing.T) {
	store := runlog.NewMemoryStore()
	eng, err := New(model.DefaultRunConfig(), Options{Controller: control.Naive{}, Days: 2, Store: store})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := eng.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Steps)
	assert.Empty(t, store.Records())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := model.DefaultRunConfig()
	cfg.SoCMin = 0.9
	cfg.SoCInit = 0.5
	_, err := New(cfg, Options{Controller: control.Naive{}, Days: 1, Store: runlog.NewMemoryStore()})
	require.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = New(model.DefaultRunConfig(), Options{Controller: control.Naive{}, Days: 0, Store: runlog.NewMemoryStore()})
	require.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = New(model.DefaultRunConfig(), Options{Days: 1, Store: runlog.NewMemoryStore()})
	require.Error(t, err)
}
