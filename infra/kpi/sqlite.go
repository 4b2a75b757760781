// Package kpi keeps a per-day energy balance of every run in SQLite, so
// that multi-day runs can be compared day by day after the fact.
package kpi

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/offgrid-dt/core/metrics"
)

// DailyRecord is the energy balance of one simulated day.
type DailyRecord struct {
	RunID            string
	Controller       string
	Day              time.Time
	PVKWh            float64
	RequestedKWh     float64
	ServedKWh        float64
	CritRequestedKWh float64
	CritServedKWh    float64
	CurtailedKWh     float64
	BlackoutMinutes  int
}

// CLSR is the critical load satisfaction ratio of the day, 1 when nothing
// critical was requested.
func (r DailyRecord) CLSR() float64 {
	if r.CritRequestedKWh <= 0 {
		return 1
	}
	return r.CritServedKWh / r.CritRequestedKWh
}

// SQLiteStore persists daily KPI records in a SQLite database. It is a
// MetricsSink fed with step observations.
type SQLiteStore struct {
	db          *sql.DB
	stepMinutes int
}

// NewSQLiteStore opens or creates the database and ensures schema.
// stepMinutes is the simulation timestep used to integrate power.
func NewSQLiteStore(path string, stepMinutes int) (*SQLiteStore, error) {
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("kpi store: timestep must be positive")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS daily_kpi (
        run_id TEXT,
        controller TEXT,
        day INTEGER,
        pv REAL,
        requested REAL,
        served REAL,
        crit_requested REAL,
        crit_served REAL,
        curtailed REAL,
        blackout_minutes INTEGER,
        PRIMARY KEY(run_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, stepMinutes: stepMinutes}, nil
}

// Day truncates t to its UTC day.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// RecordStep adds one step to the balance of its day.
func (s *SQLiteStore) RecordStep(obs coremetrics.StepObservation) error {
	r := obs.Record
	dtH := float64(s.stepMinutes) / 60
	blackout := 0
	if r.CritServedKW+1e-9 < r.CritRequestedKW {
		blackout = s.stepMinutes
	}
	_, err := s.db.Exec(`INSERT INTO daily_kpi (run_id, controller, day, pv, requested, served, crit_requested, crit_served, curtailed, blackout_minutes)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, day) DO UPDATE SET
            pv = pv + excluded.pv,
            requested = requested + excluded.requested,
            served = served + excluded.served,
            crit_requested = crit_requested + excluded.crit_requested,
            crit_served = crit_served + excluded.crit_served,
            curtailed = curtailed + excluded.curtailed,
            blackout_minutes = blackout_minutes + excluded.blackout_minutes`,
		obs.RunID, obs.Controller, Day(r.Timestamp).Unix(),
		r.PVNowKW*dtH, r.LoadRequestedKW*dtH, r.LoadServedKW*dtH,
		r.CritRequestedKW*dtH, r.CritServedKW*dtH, r.CurtailedSolarKW*dtH, blackout)
	return err
}

// Query returns the days of a run in order.
func (s *SQLiteStore) Query(runID string) ([]DailyRecord, error) {
	rows, err := s.db.Query(`SELECT run_id, controller, day, pv, requested, served, crit_requested, crit_served, curtailed, blackout_minutes
        FROM daily_kpi WHERE run_id = ? ORDER BY day`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []DailyRecord
	for rows.Next() {
		var r DailyRecord
		var ts int64
		if err := rows.Scan(&r.RunID, &r.Controller, &ts, &r.PVKWh, &r.RequestedKWh, &r.ServedKWh,
			&r.CritRequestedKWh, &r.CritServedKWh, &r.CurtailedKWh, &r.BlackoutMinutes); err != nil {
			return nil, err
		}
		r.Day = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() { _ = s.db.Close() }
