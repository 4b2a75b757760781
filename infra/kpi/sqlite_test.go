package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
	"github.com/kilianp07/offgrid-dt/core/model"
)

func TestSQLiteStoreAccumulatesPerDay(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"), 15)
	require.NoError(t, err)
	defer store.Close()

	var _ coremetrics.MetricsSink = store
	day1 := time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC)
	steps := []model.StepRecord{
		{Timestamp: day1, PVNowKW: 0, LoadRequestedKW: 1, LoadServedKW: 1, CritRequestedKW: 0.4, CritServedKW: 0.4},
		{Timestamp: day1.Add(15 * time.Minute), LoadRequestedKW: 2, LoadServedKW: 0.2, CritRequestedKW: 0.4, CritServedKW: 0.2},
		{Timestamp: day1.Add(30 * time.Minute), PVNowKW: 4, LoadRequestedKW: 1, LoadServedKW: 1, CritRequestedKW: 0.4, CritServedKW: 0.4, CurtailedSolarKW: 2},
	}
	for _, r := range steps {
		require.NoError(t, store.RecordStep(coremetrics.StepObservation{RunID: "r1", Controller: "naive", Record: r}))
	}
	require.NoError(t, store.RecordStep(coremetrics.StepObservation{RunID: "r2", Controller: "naive", Record: steps[0]}))

	days, err := store.Query("r1")
	require.NoError(t, err)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), first.Day)
	assert.Equal(t, "naive", first.Controller)
	assert.InDelta(t, 0.75, first.RequestedKWh, 1e-9)
	assert.InDelta(t, 0.3, first.ServedKWh, 1e-9)
	assert.InDelta(t, 0.15, first.CritServedKWh, 1e-9)
	assert.Equal(t, 15, first.BlackoutMinutes)
	assert.InDelta(t, 0.75, first.CLSR(), 1e-9)

	second := days[1]
	assert.InDelta(t, 1.0, second.PVKWh, 1e-9)
	assert.InDelta(t, 0.5, second.CurtailedKWh, 1e-9)
	assert.Equal(t, 0, second.BlackoutMinutes)
	assert.Equal(t, 1.0, DailyRecord{}.CLSR())

	other, err := store.Query("r2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestNewSQLiteStoreRejectsBadStep(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"), 0)
	assert.Error(t, err)
}
