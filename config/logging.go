package config

import (
	"fmt"
	"slices"

	"github.com/kilianp07/offgrid-dt/core/runlog"
)

// LoggingConfig defines where step records are stored.
type LoggingConfig struct {
	// Backend selects the record store: "csv", "jsonl", "rotating", "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the store location. Empty means one file per run under the
	// simulation output directory.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "csv"
	}
	if c.Backend == "rotating" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if !slices.Contains(runlog.Backends(), c.Backend) {
		return fmt.Errorf("logging: unknown backend %s", c.Backend)
	}
	return nil
}
