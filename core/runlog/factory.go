package runlog

import (
	"fmt"

	"github.com/kilianp07/offgrid-dt/core/factory"
)

// StoreConfig is the decoded configuration shared by the builtin backends.
type StoreConfig struct {
	Path         string `json:"path"`
	GuidancePath string `json:"guidance_path"`
	RunID        string `json:"run_id"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
	MaxAgeDays   int    `json:"max_age_days"`
}

var registry = factory.NewRegistry[RecordSink]()

func init() {
	registry.MustRegister("csv", func(conf map[string]any) (RecordSink, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		if c.GuidancePath == "" {
			return nil, fmt.Errorf("csv store: guidance_path is required")
		}
		return NewCSVStore(c.Path, c.GuidancePath)
	})
	registry.MustRegister("jsonl", func(conf map[string]any) (RecordSink, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	registry.MustRegister("rotating", func(conf map[string]any) (RecordSink, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	registry.MustRegister("sqlite", func(conf map[string]any) (RecordSink, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path, c.RunID)
	})
	registry.MustRegister("memory", func(map[string]any) (RecordSink, error) {
		return NewMemoryStore(), nil
	})
}

func decode(conf map[string]any) (StoreConfig, error) {
	var c StoreConfig
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, fmt.Errorf("store path is required")
	}
	return c, nil
}

// Backends lists the builtin store types.
func Backends() []string { return registry.Names() }

// NewStore builds a record sink from its module configuration.
func NewStore(cfg factory.ModuleConfig) (RecordSink, error) {
	return registry.Create(cfg)
}
