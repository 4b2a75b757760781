package kpi

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotDefaults(t *testing.T) {
	var a Accumulator
	s := a.Snapshot()
	assert.Equal(t, 1.0, s.CLSR)
	assert.Equal(t, 0.0, s.SAR)
	assert.Equal(t, 1.0, s.SolarUtilization)
	assert.Equal(t, 0, s.BlackoutMinutes)
}

func TestBlackoutMinutes(t *testing.T) {
	var a Accumulator
	for i := 0; i < 96; i++ {
		a.Update(Step{DtH: 0.25, CritRequestedKW: 1, TotalRequestedKW: 1})
	}
	s := a.Snapshot()
	assert.Equal(t, 1440, s.BlackoutMinutes)
	assert.Equal(t, 0.0, s.CLSR)
}

func TestBlackoutTolerance(t *testing.T) {
	var a Accumulator
	a.Update(Step{DtH: 0.25, CritRequestedKW: 1, CritServedKW: 1 - 1e-12})
	assert.Equal(t, 0, a.Snapshot().BlackoutMinutes)
}

func TestRatios(t *testing.T) {
	var a Accumulator
	a.Update(Step{DtH: 1, CritRequestedKW: 1, CritServedKW: 0.5, TotalRequestedKW: 4, ServedKW: 2, PVKW: 3, CurtailedKW: 1, ThroughputKWh: 2})
	s := a.Snapshot()
	assert.InDelta(t, 0.5, s.CLSR, 1e-12)
	assert.InDelta(t, 0.5, s.SAR, 1e-12)
	assert.InDelta(t, 2.0/3.0, s.SolarUtilization, 1e-12)
	assert.Equal(t, 60, s.BlackoutMinutes)
	assert.Equal(t, 2.0, s.BatteryThroughputKWh)
	assert.InDelta(t, 2.0, a.Totals()["solar_used_kwh"], 1e-12)
}

func TestRatiosStayInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	var a Accumulator
	for i := 0; i < 2000; i++ {
		req := rng.Float64() * 3
		pv := rng.Float64() * 5
		a.Update(Step{
			DtH:              0.25,
			CritRequestedKW:  req / 3,
			CritServedKW:     rng.Float64() * req / 3,
			TotalRequestedKW: req,
			ServedKW:         rng.Float64() * req,
			PVKW:             pv,
			CurtailedKW:      rng.Float64() * pv,
		})
		s := a.Snapshot()
		for name, v := range map[string]float64{"clsr": s.CLSR, "sar": s.SAR, "util": s.SolarUtilization} {
			if v < 0 || v > 1 {
				t.Fatalf("step %d: %s=%v outside [0,1]", i, name, v)
			}
		}
	}
}
