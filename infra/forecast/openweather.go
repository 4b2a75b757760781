package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	core "github.com/kilianp07/offgrid-dt/core/forecast"
	"github.com/kilianp07/offgrid-dt/infra/logger"
)

// OpenWeatherURL is the default API host.
const OpenWeatherURL = "https://api.openweathermap.org"

// ErrNoCandidate is returned when none of the solar endpoints produced points.
var ErrNoCandidate = errors.New("openweather: no solar endpoint returned irradiance")

var openWeatherPaths = []string{
	"/data/2.5/solar/forecast",
	"/data/2.5/solar",
	"/energy/1.0/solar/forecast",
}

// OpenWeather queries the OpenWeather solar endpoints in turn and returns
// the first non-empty answer.
type OpenWeather struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	log logger.Logger
}

func NewOpenWeather(apiKey, baseURL string, timeout time.Duration) *OpenWeather {
	if baseURL == "" {
		baseURL = OpenWeatherURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenWeather{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		log:     logger.New("openweather"),
	}
}

func (o *OpenWeather) Name() string { return "openweather" }

func (o *OpenWeather) Irradiance(ctx context.Context, req core.Request) ([]core.IrradiancePoint, error) {
	if o.APIKey == "" {
		return nil, errors.New("openweather: api key not set")
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("appid", o.APIKey)
	q.Set("hours", strconv.Itoa(req.Hours))

	var lastErr error
	for _, p := range openWeatherPaths {
		pts, err := o.get(ctx, o.BaseURL+p+"?"+q.Encode())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if o.log != nil {
				o.log.Debugf("openweather %s: %v", p, err)
			}
			continue
		}
		if len(pts) > 0 {
			return pts, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCandidate, lastErr)
	}
	return nil, ErrNoCandidate
}

// get returns nil points without error for statuses >= 400 so the next
// candidate is tried.
func (o *OpenWeather) get(ctx context.Context, u string) ([]core.IrradiancePoint, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return parseOpenWeather(body), nil
}

// parseOpenWeather understands the "list" layout (dt plus a ghi field) and
// the "data" layout (date or dt plus irradiance.ghi).
func parseOpenWeather(body map[string]any) []core.IrradiancePoint {
	var out []core.IrradiancePoint
	if items, ok := body["list"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			ts, ok := timeFromAny(m["dt"])
			if !ok {
				continue
			}
			ghi, ok := firstNumber(m, "ghi", "GHI", "global_horizontal_irradiance")
			if !ok {
				continue
			}
			out = append(out, core.IrradiancePoint{Time: ts, GHIWm2: ghi})
		}
		return out
	}
	if items, ok := body["data"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			raw := m["date"]
			if raw == nil {
				raw = m["dt"]
			}
			ts, ok := timeFromAny(raw)
			if !ok {
				continue
			}
			irr, _ := m["irradiance"].(map[string]any)
			ghi, ok := firstNumber(irr, "ghi")
			if !ok {
				continue
			}
			out = append(out, core.IrradiancePoint{Time: ts, GHIWm2: ghi})
		}
	}
	return out
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// timeFromAny accepts unix seconds or an ISO-8601 string.
func timeFromAny(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		sec := int64(t)
		return time.Unix(sec, int64((t-float64(sec))*1e9)).UTC(), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
