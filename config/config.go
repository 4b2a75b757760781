package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/core/metrics"
	"github.com/kilianp07/offgrid-dt/core/model"
	"github.com/kilianp07/offgrid-dt/infra/mqtt"
)

type Config struct {
	System     model.RunConfig           `json:"system"`
	Appliances []model.ApplianceTemplate `json:"appliances"`
	// AppliancesFile is a YAML list of templates, read when Appliances is empty.
	AppliancesFile string           `json:"appliances_file"`
	Simulation     SimulationConfig `json:"simulation"`
	Forecast       ForecastConfig   `json:"forecast"`
	Logging        LoggingConfig    `json:"logging"`
	Metrics        metrics.Config   `json:"metrics"`
	MQTT           mqtt.Config      `json:"mqtt"`
	Sentry         SentryConfig     `json:"sentry"`
}

// Default is the configuration used when no file is given: the demo
// household on a synthetic sky.
func Default() *Config {
	cfg := &Config{System: model.DefaultRunConfig()}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Forecast.SetDefaults()
	c.Logging.SetDefaults()
	c.MQTT.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.System.Validate(); err != nil {
		return err
	}
	if err := model.ValidateTemplates(c.Appliances); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{c.Simulation, c.Forecast, c.Logging, c.MQTT} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a YAML or JSON file, applies K_ prefixed environment
// overrides (K_SIMULATION__DAYS=3 sets simulation.days), fills defaults
// and validates the result. Fields absent from the file keep the values
// of Default.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := &Config{System: model.DefaultRunConfig()}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.resolveAppliances(filepath.Dir(path)); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Templates returns the configured household, or the demo one.
func (c *Config) Templates() []model.ApplianceTemplate {
	if len(c.Appliances) == 0 {
		return demand.DemoAppliances()
	}
	return c.Appliances
}

func (c *Config) resolveAppliances(base string) error {
	if len(c.Appliances) > 0 || c.AppliancesFile == "" {
		return nil
	}
	path := c.AppliancesFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	templates, err := LoadAppliances(path)
	if err != nil {
		return err
	}
	c.Appliances = templates
	return nil
}

// LoadAppliances reads a YAML list of appliance templates.
func LoadAppliances(path string) ([]model.ApplianceTemplate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("appliances: %w", err)
	}
	var out []model.ApplianceTemplate
	if err := yamlv3.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("appliances %s: %w", path, err)
	}
	return out, nil
}
