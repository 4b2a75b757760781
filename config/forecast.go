package config

import (
	"fmt"
	"time"
)

// Forecast providers.
const (
	ProviderSynthetic   = "synthetic"
	ProviderNASA        = "nasa"
	ProviderOpenWeather = "openweather"
)

// ForecastConfig selects the irradiance source. Remote sources fall back
// to the synthetic curve when they fail.
type ForecastConfig struct {
	Provider           string  `json:"provider"`
	NASABaseURL        string  `json:"nasa_base_url"`
	OpenWeatherAPIKey  string  `json:"openweather_api_key"`
	OpenWeatherBaseURL string  `json:"openweather_base_url"`
	TimeoutSeconds     int     `json:"timeout_seconds"`
	SyntheticPeakGHI   float64 `json:"synthetic_peak_ghi"`
}

func (c *ForecastConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderSynthetic
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

func (c ForecastConfig) Validate() error {
	switch c.Provider {
	case ProviderSynthetic, ProviderNASA:
	case ProviderOpenWeather:
		if c.OpenWeatherAPIKey == "" {
			return fmt.Errorf("forecast: openweather_api_key is required")
		}
	default:
		return fmt.Errorf("forecast: unknown provider %q", c.Provider)
	}
	if c.SyntheticPeakGHI < 0 {
		return fmt.Errorf("forecast: synthetic_peak_ghi must not be negative")
	}
	return nil
}

func (c ForecastConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
