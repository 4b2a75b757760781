// Package demand reads recorded household demand from disk.
package demand

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	core "github.com/kilianp07/offgrid-dt/core/demand"
)

// Column names recognised in a measured demand file. critical_kw is optional
// and reads zero when absent.
const (
	ColumnTotal    = "total_kw"
	ColumnCritical = "critical_kw"
)

// CSVProvider serves consecutive days from one CSV file of per-step rows.
// Day d covers rows [d*daySteps, (d+1)*daySteps). A file that runs out
// before the end of the run yields a short day, which the engine rejects.
type CSVProvider struct {
	Path string

	once     sync.Once
	total    []float64
	critical []float64
	err      error
}

func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{Path: path}
}

func (p *CSVProvider) Day(ctx context.Context, dayIndex, daySteps int) (core.MeasuredDay, error) {
	if err := ctx.Err(); err != nil {
		return core.MeasuredDay{}, err
	}
	p.once.Do(func() {
		f, err := os.Open(p.Path)
		if err != nil {
			p.err = err
			return
		}
		defer f.Close()
		p.total, p.critical, p.err = ReadSeries(f)
	})
	if p.err != nil {
		return core.MeasuredDay{}, fmt.Errorf("measured demand %s: %w", p.Path, p.err)
	}
	lo := min(dayIndex*daySteps, len(p.total))
	hi := min(lo+daySteps, len(p.total))
	return core.MeasuredDay{
		TotalKW:    append([]float64(nil), p.total[lo:hi]...),
		CriticalKW: append([]float64(nil), p.critical[lo:hi]...),
	}, nil
}

// ReadSeries parses a headed CSV stream. Extra columns are ignored.
func ReadSeries(r io.Reader) (total, critical []float64, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, err
	}
	ti, ci := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColumnTotal:
			ti = i
		case ColumnCritical:
			ci = i
		}
	}
	if ti < 0 {
		return nil, nil, fmt.Errorf("missing %q column", ColumnTotal)
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		t, err := parseKW(rec, ti)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		var c float64
		if ci >= 0 {
			if c, err = parseKW(rec, ci); err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		total = append(total, t)
		critical = append(critical, c)
	}
	return total, critical, nil
}

func parseKW(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, fmt.Errorf("missing column %d", i)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative power %v", v)
	}
	return v, nil
}
