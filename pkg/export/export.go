// Package export renders run results for people and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/offgrid-dt/core/matching"
	"github.com/kilianp07/offgrid-dt/core/simulation"
)

// WriteMatchingJSON writes the day-ahead result to w as indented JSON.
func WriteMatchingJSON(w io.Writer, res matching.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteMatchingYAML writes the day-ahead result to w as YAML.
func WriteMatchingYAML(w io.Writer, res matching.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}

// WriteMatchingCSV writes one row per appliance advisory.
func WriteMatchingCSV(w io.Writer, res matching.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"appliance_id", "name", "category", "status", "recommended_window", "reason"}); err != nil {
		return err
	}
	for _, a := range res.Advisories {
		rec := []string{a.ApplianceID, a.Name, string(a.Category), string(a.Status), a.RecommendedWindow, a.Reason}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryJSON writes a run summary as indented JSON.
func WriteSummaryJSON(w io.Writer, s simulation.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteComparisonCSV writes the KPIs of several runs, one row per run in
// the given order.
func WriteComparisonCSV(w io.Writer, runs []simulation.Summary) error {
	cw := csv.NewWriter(w)
	header := []string{"controller", "run_id", "start", "steps", "clsr", "blackout_minutes", "sar", "solar_utilization", "battery_throughput_kwh", "risk_level", "fallbacks"}
	if err := cw.Write(header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, s := range runs {
		rec := []string{
			s.Controller,
			s.RunID,
			s.Start.Format(time.RFC3339),
			strconv.Itoa(s.Steps),
			f(s.KPI.CLSR),
			strconv.Itoa(s.KPI.BlackoutMinutes),
			f(s.KPI.SAR),
			f(s.KPI.SolarUtilization),
			f(s.KPI.BatteryThroughputKWh),
			string(s.DayAhead.RiskLevel),
			strconv.Itoa(s.Fallbacks),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
