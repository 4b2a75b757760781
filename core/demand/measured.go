package demand

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// ErrMeasuredLength reports a measured day whose series do not match the
// simulation day length. It is never recovered from.
var ErrMeasuredLength = errors.New("measured demand length mismatch")

// MeasuredDay is one day of recorded demand, aligned on simulation steps.
type MeasuredDay struct {
	TotalKW    []float64
	CriticalKW []float64
}

// Validate checks that both series cover exactly daySteps steps.
func (d MeasuredDay) Validate(daySteps int) error {
	if len(d.TotalKW) != daySteps || len(d.CriticalKW) != daySteps {
		return fmt.Errorf("%w: want %d steps, got total=%d critical=%d",
			ErrMeasuredLength, daySteps, len(d.TotalKW), len(d.CriticalKW))
	}
	return nil
}

// EnergyKWh integrates the total series.
func (d MeasuredDay) EnergyKWh(dtH float64) float64 {
	return floats.Sum(d.TotalKW) * dtH
}

// MeasuredProvider supplies recorded demand one day at a time.
type MeasuredProvider interface {
	Day(ctx context.Context, dayIndex, daySteps int) (MeasuredDay, error)
}

// BaselineDay is the flat day used when a measured day cannot be fetched:
// the critical templates drawn at every step.
func BaselineDay(templates []model.ApplianceTemplate, daySteps int) MeasuredDay {
	kw := CriticalBaselineKW(templates)
	day := MeasuredDay{TotalKW: make([]float64, daySteps), CriticalKW: make([]float64, daySteps)}
	for i := range day.TotalKW {
		day.TotalKW[i] = kw
		day.CriticalKW[i] = kw
	}
	return day
}
