package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/kilianp07/offgrid-dt/core/forecast"
)

func TestParseNASAPower(t *testing.T) {
	var body nasaResponse
	raw := `{"properties":{"parameter":{"ALLSKY_SFC_SW_DWN":{"2025020209":186.1,"2025020208":65.78,"2025020210":-999,"bad":1}}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	pts := parseNASAPower(body)
	require.Len(t, pts, 2)
	assert.Equal(t, time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC), pts[0].Time)
	assert.Equal(t, 65.78, pts[0].GHIWm2)
	assert.Equal(t, 9, pts[1].Time.Hour())
	assert.Equal(t, 186.1, pts[1].GHIWm2)
}

func TestSameDayLastYear(t *testing.T) {
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), sameDayLastYear(time.Date(2026, 6, 15, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC), sameDayLastYear(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)))
}

func nasaDay(day time.Time, noon float64) map[string]float64 {
	out := map[string]float64{}
	for h := 0; h < 24; h++ {
		v := 0.0
		if h >= 6 && h <= 18 {
			v = noon * float64(6-abs(12-h)) / 6
		}
		out[day.Add(time.Duration(h)*time.Hour).Format(nasaKeyLayout)] = v
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestNASAPowerIrradiance(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		series := map[string]float64{}
		for d := 0; d < 7; d++ {
			day := time.Date(2025, 6, 12+d, 0, 0, 0, 0, time.UTC)
			for k, v := range nasaDay(day, 600+float64(d)*100) {
				series[k] = v
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"properties": map[string]any{"parameter": map[string]any{nasaGHIParam: series}},
		})
	}))
	defer srv.Close()

	n := NewNASAPower(srv.URL, time.Second)
	start := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	pts, err := n.Irradiance(context.Background(), core.Request{Latitude: 48.85, Longitude: 2.35, Start: start, Hours: 48, StepMinutes: 15})
	require.NoError(t, err)
	require.Len(t, pts, 48)

	assert.Equal(t, "20250612", gotQuery["start"])
	assert.Equal(t, "20250618", gotQuery["end"])
	assert.Equal(t, nasaGHIParam, gotQuery["parameters"])
	assert.Equal(t, "RE", gotQuery["community"])
	assert.Equal(t, "UTC", gotQuery["time-standard"])
	assert.Equal(t, "48.85", gotQuery["latitude"])

	// mean of 600..1200 at noon
	assert.InDelta(t, 900, pts[12].GHIWm2, 1e-9)
	assert.InDelta(t, 900, pts[36].GHIWm2, 1e-9)
	assert.Equal(t, 0.0, pts[0].GHIWm2)
	assert.Equal(t, start, pts[0].Time)
}

func TestNASAPowerRejectsFillOnlyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		series := map[string]float64{}
		for h := 0; h < 24; h++ {
			series[fmt.Sprintf("20250615%02d", h)] = -999
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"properties": map[string]any{"parameter": map[string]any{nasaGHIParam: series}},
		})
	}))
	defer srv.Close()

	_, err := NewNASAPower(srv.URL, time.Second).Irradiance(context.Background(), core.Request{Start: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), Hours: 24})
	require.ErrorIs(t, err, core.ErrNoData)
}

func TestNASAPowerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewNASAPower(srv.URL, time.Second).Irradiance(context.Background(), core.Request{Start: time.Now(), Hours: 24})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
