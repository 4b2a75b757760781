package model

import (
	"fmt"
	"math"
	"strings"
)

// Category ranks appliances by how much the household depends on them.
type Category string

const (
	Critical   Category = "critical"
	Flexible   Category = "flexible"
	Deferrable Category = "deferrable"
)

// ParseCategory maps a free-form label onto a known Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate rejects unknown categories.
func (c Category) Validate() error {
	switch c {
	case Critical, Flexible, Deferrable:
		return nil
	}
	return fmt.Errorf("unknown appliance category %q", string(c))
}

// ApplianceTemplate describes a household appliance and how often it runs.
//
// Critical appliances form the continuous baseline load. Non-critical ones
// are expanded into task instances every day: DailyQuotaSteps single-step
// instances when the quota is positive, otherwise one instance of
// DurationSteps contiguous steps.
type ApplianceTemplate struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Category          Category `json:"category" yaml:"category"`
	PowerW            float64  `json:"power_w" yaml:"power_w"`
	DurationSteps     int      `json:"duration_steps" yaml:"duration_steps"`
	EarliestStartStep int      `json:"earliest_start_step" yaml:"earliest_start_step"`
	LatestEndStep     int      `json:"latest_end_step" yaml:"latest_end_step"`
	DailyQuotaSteps   int      `json:"daily_quota_steps" yaml:"daily_quota_steps"`
	MustCompleteDaily bool     `json:"must_complete_daily" yaml:"must_complete_daily"`
}

// Steps returns the run length of one instance, at least one step.
func (a ApplianceTemplate) Steps() int {
	if a.DurationSteps < 1 {
		return 1
	}
	return a.DurationSteps
}

// PowerKW returns the nominal draw in kW.
func (a ApplianceTemplate) PowerKW() float64 { return a.PowerW / 1000.0 }

// Validate checks the template in isolation.
func (a ApplianceTemplate) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("appliance id is required")
	}
	if err := a.Category.Validate(); err != nil {
		return fmt.Errorf("appliance %s: %w", a.ID, err)
	}
	if a.PowerW <= 0 || math.IsNaN(a.PowerW) {
		return fmt.Errorf("appliance %s: power_w must be positive", a.ID)
	}
	if a.DurationSteps < 1 {
		return fmt.Errorf("appliance %s: duration_steps must be at least 1", a.ID)
	}
	if a.DailyQuotaSteps < 0 {
		return fmt.Errorf("appliance %s: daily_quota_steps must not be negative", a.ID)
	}
	return nil
}

// ValidateTemplates validates every template and rejects duplicate ids.
func ValidateTemplates(templates []ApplianceTemplate) error {
	seen := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("duplicate appliance id %s", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// TaskInstance is one schedulable unit of non-critical work for a given day.
type TaskInstance struct {
	ID                string   `json:"id"`
	ApplianceID       string   `json:"appliance_id"`
	Category          Category `json:"category"`
	PowerKW           float64  `json:"power_kw"`
	DurationSteps     int      `json:"duration_steps"`
	EarliestStartStep int      `json:"earliest_start_step"`
	LatestEndStep     int      `json:"latest_end_step"`
	MustCompleteDaily bool     `json:"must_complete_daily"`
}

// InWindow reports whether the task may run at the given day-local step.
// The window is half-open: [EarliestStartStep, LatestEndStep).
func (t TaskInstance) InWindow(step int) bool {
	return step >= t.EarliestStartStep && step < t.LatestEndStep
}

// Expired reports whether the window has closed for the rest of the day.
func (t TaskInstance) Expired(step int) bool {
	return step >= t.LatestEndStep
}
