package runlog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/offgrid-dt/core/model"
)

var stateHeader = []string{
	"timestamp", "step_index", "pv_now_kw", "pv_forecast_kw", "soc_now", "soc_min", "soc_max",
	"load_requested_kw", "load_served_kw", "crit_requested_kw", "crit_served_kw",
	"curtailed_solar_kw", "charge_kw", "discharge_kw",
	"advisory_charge_kw", "advisory_discharge_kw",
	"served_task_ids", "deferred_task_ids", "shed_task_ids",
	"risk_level", "headline", "explanation", "reason_codes",
	"kpi_CLSR", "kpi_Blackout_minutes", "kpi_SAR", "kpi_Solar_utilization", "kpi_Battery_throughput_kwh",
}

// CSVStore writes the tabular state log and, in parallel, the guidance
// stream as JSON lines.
type CSVStore struct {
	mu           sync.Mutex
	statePath    string
	guidancePath string
	state        *os.File
	guidance     *os.File
	w            *csv.Writer
	enc          *json.Encoder
}

// NewCSVStore creates both files and writes the CSV header.
func NewCSVStore(statePath, guidancePath string) (*CSVStore, error) {
	if err := ensureDir(statePath); err != nil {
		return nil, err
	}
	if err := ensureDir(guidancePath); err != nil {
		return nil, err
	}
	state, err := os.Create(statePath)
	if err != nil {
		return nil, err
	}
	guidance, err := os.Create(guidancePath)
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	s := &CSVStore{
		statePath:    statePath,
		guidancePath: guidancePath,
		state:        state,
		guidance:     guidance,
		w:            csv.NewWriter(state),
		enc:          json.NewEncoder(guidance),
	}
	if err := s.w.Write(stateHeader); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) Append(_ context.Context, rec model.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return fmt.Errorf("csv store %s closed", s.statePath)
	}
	if err := s.w.Write(stateRow(rec)); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.enc.Encode(GuidanceEvent{Timestamp: rec.Timestamp, Step: rec.Step, Guidance: rec.Guidance})
}

func (s *CSVStore) Location() string { return s.statePath }

// GuidanceLocation is the path of the guidance JSON lines file.
func (s *CSVStore) GuidanceLocation() string { return s.guidancePath }

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	s.w.Flush()
	werr := s.w.Error()
	serr := s.state.Close()
	gerr := s.guidance.Close()
	s.state, s.guidance = nil, nil
	for _, err := range []error{werr, serr, gerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func stateRow(r model.StepRecord) []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		strconv.Itoa(r.Step),
		ff(r.PVNowKW),
		joinFloats(r.PVForecastKW),
		ff(r.SoC),
		ff(r.SoCMin),
		ff(r.SoCMax),
		ff(r.LoadRequestedKW),
		ff(r.LoadServedKW),
		ff(r.CritRequestedKW),
		ff(r.CritServedKW),
		ff(r.CurtailedSolarKW),
		ff(r.Applied.ChargeKW),
		ff(r.Applied.DischargeKW),
		ff(r.Advisory.ChargeKW),
		ff(r.Advisory.DischargeKW),
		strings.Join(r.Applied.ServedTaskIDs, ";"),
		strings.Join(r.Advisory.Deferred, ";"),
		strings.Join(r.Advisory.Shed, ";"),
		string(r.Guidance.RiskLevel),
		r.Guidance.Headline,
		r.Guidance.Explanation,
		strings.Join(r.Guidance.ReasonCodes, ";"),
		ff(r.KPI.CLSR),
		strconv.Itoa(r.KPI.BlackoutMinutes),
		ff(r.KPI.SAR),
		ff(r.KPI.SolarUtilization),
		ff(r.KPI.BatteryThroughputKWh),
	}
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = ff(v)
	}
	return strings.Join(parts, ";")
}
