package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/greensync-weather/internal/weather"
)

const (
	DefaultOneCallBaseURL = "https://api.openweathermap.org/data/3.0/onecall"
	DefaultOneCallTimeout = 5 * time.Second
)

// OneCallConfig configures OneCallProvider.
type OneCallConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
	// RatePerSec throttles outbound calls; zero disables throttling.
	RatePerSec float64
}

// OneCallProvider implements weather.CurrentProvider for the OpenWeatherMap
// One Call 3.0 API.
type OneCallProvider struct {
	name    string
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.CurrentProvider = (*OneCallProvider)(nil)

func NewOneCallProvider(cfg OneCallConfig) *OneCallProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOneCallBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOneCallTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "kr"
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &OneCallProvider{
		name:    "openweathermap",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		lang:    cfg.Language,
		httpCfg: HTTPClientConfig{
			Client: &http.Client{Timeout: cfg.Timeout},
			// Exactly one request per call.
			Backoff: BackoffConfig{
				MaxRetries:      0,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
			Limiter: limiter,
		},
		circuit: newBreaker("openweathermap"),
	}
}

func (p *OneCallProvider) Name() string {
	return p.name
}

// oneCallResponse mirrors the subset of the One Call body we consume. Pointer
// fields distinguish absent values from zeros.
type oneCallResponse struct {
	Current *struct {
		Dt        *int64   `json:"dt"`
		Sunrise   int64    `json:"sunrise"`
		Sunset    int64    `json:"sunset"`
		Temp      float64  `json:"temp"`
		DewPoint  *float64 `json:"dew_point"`
		WindSpeed float64  `json:"wind_speed"`
		WindDeg   float64  `json:"wind_deg"`
		Weather   []struct {
			Icon string `json:"icon"`
		} `json:"weather"`
		Rain *struct {
			OneH *float64 `json:"1h"`
		} `json:"rain"`
		Snow *struct {
			OneH *float64 `json:"1h"`
		} `json:"snow"`
	} `json:"current"`
}

func (p *OneCallProvider) FetchCurrent(ctx context.Context, loc weather.Locality) (weather.ProviderPayload, error) {
	if err := weather.ValidateLocality(loc); err != nil {
		return weather.ProviderPayload{}, err
	}
	if p.apiKey == "" {
		return weather.ProviderPayload{}, &weather.UpstreamError{Source: p.name, Err: fmt.Errorf("%w: api key is not configured", weather.ErrAuth)}
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", formatFloat(loc.Lat))
		values.Set("lon", formatFloat(loc.Lon))
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lang", p.lang)
		values.Set("exclude", "minutely,hourly,daily,alerts")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderPayload{}, err
	}
	defer resp.Body.Close()

	var payload oneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "decode body: %v", err)
	}

	cur := payload.Current
	switch {
	case cur == nil:
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current block")
	case cur.Dt == nil:
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current.dt")
	case cur.DewPoint == nil:
		// Older API versions omit dew point; treat as incompatible.
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current.dew_point")
	}

	out := weather.ProviderPayload{
		Provider:    p.name,
		Temperature: cur.Temp,
		WindSpeed:   cur.WindSpeed,
		WindDeg:     cur.WindDeg,
		DewPoint:    *cur.DewPoint,
		Sunrise:     cur.Sunrise,
		Sunset:      cur.Sunset,
		Dt:          *cur.Dt,
	}
	if len(cur.Weather) > 0 {
		out.Icon = strings.TrimSpace(cur.Weather[0].Icon)
	}
	if cur.Rain != nil {
		out.Rain1h = cur.Rain.OneH
	}
	if cur.Snow != nil {
		out.Snow1h = cur.Snow.OneH
	}
	return out, nil
}

func (p *OneCallProvider) formatError(status int, format string, args ...any) error {
	return &weather.UpstreamError{
		Source: p.name,
		Status: status,
		Err:    fmt.Errorf("%w: "+format, append([]any{weather.ErrUpstreamFormat}, args...)...),
	}
}
