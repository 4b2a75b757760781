package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	core "github.com/kilianp07/offgrid-dt/core/forecast"
	"github.com/kilianp07/offgrid-dt/infra/logger"
)

const (
	// NASAPowerURL is the hourly point endpoint of the NASA POWER API.
	NASAPowerURL  = "https://power.larc.nasa.gov/api/temporal/hourly/point"
	nasaGHIParam  = "ALLSKY_SFC_SW_DWN"
	nasaKeyLayout = "2006010215"
	nasaDayLayout = "20060102"
)

// NASAPower builds a representative day from last year's measured GHI
// around the same calendar date and repeats it over the requested span.
// NASA POWER data lags real time by several days, so recent dates are not
// usable directly.
type NASAPower struct {
	BaseURL string
	// HalfWindowDays is the number of days fetched on each side of the
	// reference date. Zero means 3.
	HalfWindowDays int
	Client         *http.Client

	log logger.Logger
}

// NewNASAPower returns a client against baseURL (NASAPowerURL when empty).
func NewNASAPower(baseURL string, timeout time.Duration) *NASAPower {
	if baseURL == "" {
		baseURL = NASAPowerURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NASAPower{
		BaseURL:        baseURL,
		HalfWindowDays: 3,
		Client:         &http.Client{Timeout: timeout},
		log:            logger.New("nasa-power"),
	}
}

func (n *NASAPower) Name() string { return "nasa_power" }

// Irradiance returns hourly points from req.Start for req.Hours. The
// profile is the per-hour mean of every valid sample in the window; a flat
// or empty profile yields core.ErrNoData.
func (n *NASAPower) Irradiance(ctx context.Context, req core.Request) ([]core.IrradiancePoint, error) {
	ref := sameDayLastYear(req.Start)
	half := n.HalfWindowDays
	if half <= 0 {
		half = 3
	}
	from := ref.AddDate(0, 0, -half)
	to := ref.AddDate(0, 0, half)
	pts, err := n.fetch(ctx, req.Latitude, req.Longitude, from, to)
	if err != nil {
		return nil, err
	}
	profile := core.HourlyProfile(pts)
	if !core.ValidProfile(profile) {
		return nil, fmt.Errorf("nasa power %s..%s: %w", from.Format(nasaDayLayout), to.Format(nasaDayLayout), core.ErrNoData)
	}
	if n.log != nil {
		n.log.Debugf("nasa power profile from %d samples around %s", len(pts), ref.Format(time.DateOnly))
	}
	return core.TileProfile(profile, req.Start, req.Hours), nil
}

func (n *NASAPower) fetch(ctx context.Context, lat, lon float64, from, to time.Time) ([]core.IrradiancePoint, error) {
	q := url.Values{}
	q.Set("parameters", nasaGHIParam)
	q.Set("community", "RE")
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("start", from.Format(nasaDayLayout))
	q.Set("end", to.Format(nasaDayLayout))
	q.Set("format", "JSON")
	q.Set("time-standard", "UTC")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nasa power request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("nasa power: unexpected status %s", resp.Status)
	}
	var body nasaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("nasa power decode: %w", err)
	}
	return parseNASAPower(body), nil
}

type nasaResponse struct {
	Properties struct {
		Parameter map[string]map[string]*float64 `json:"parameter"`
	} `json:"properties"`
}

// parseNASAPower keeps valid samples in chronological order. Negative
// values are fill (-999) and are dropped.
func parseNASAPower(body nasaResponse) []core.IrradiancePoint {
	series := body.Properties.Parameter[nasaGHIParam]
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]core.IrradiancePoint, 0, len(keys))
	for _, k := range keys {
		v := series[k]
		if v == nil || *v < 0 || len(k) != len(nasaKeyLayout) {
			continue
		}
		ts, err := time.Parse(nasaKeyLayout, k)
		if err != nil {
			continue
		}
		out = append(out, core.IrradiancePoint{Time: ts, GHIWm2: *v})
	}
	return out
}

// sameDayLastYear maps Feb 29 onto Feb 28.
func sameDayLastYear(t time.Time) time.Time {
	t = t.UTC()
	day := t.Day()
	if t.Month() == time.February && day == 29 {
		day = 28
	}
	return time.Date(t.Year()-1, t.Month(), day, 0, 0, 0, 0, time.UTC)
}
