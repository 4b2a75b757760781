package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// SQLiteStore persists records to a SQLite database, one row per step.
type SQLiteStore struct {
	db    *sql.DB
	dsn   string
	runID string
	ins   *sql.Stmt
}

// NewSQLiteStore opens or creates the database at dsn and ensures the
// schema. Rows are tagged with runID so several runs can share a file.
func NewSQLiteStore(dsn, runID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS step_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT,
        ts INTEGER,
        step INTEGER,
        soc REAL,
        soc_min REAL,
        soc_max REAL,
        risk_level TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	ins, err := db.Prepare(`INSERT INTO step_records (run_id, ts, step, soc, soc_min, soc_max, risk_level, record) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, dsn: dsn, runID: runID, ins: ins}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec model.StepRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.ins.ExecContext(ctx, s.runID, rec.Timestamp.Unix(), rec.Step, rec.SoC, rec.SoCMin, rec.SoCMax, string(rec.Guidance.RiskLevel), string(b))
	return err
}

// Query returns this run's records matching q, in step order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.StepRecord, error) {
	query := `SELECT record FROM step_records WHERE run_id = ?`
	args := []any{s.runID}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.Unix())
	}
	if q.RiskLevel != "" {
		query += ` AND risk_level = ?`
		args = append(args, string(q.RiskLevel))
	}
	query += ` ORDER BY step`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.StepRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.StepRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) Location() string { return s.dsn }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	_ = s.ins.Close()
	return s.db.Close()
}
