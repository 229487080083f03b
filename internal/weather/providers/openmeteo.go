package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/greensync-weather/internal/weather"
)

const DefaultOpenMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements weather.CurrentProvider for the keyless
// Open-Meteo forecast API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.CurrentProvider = (*OpenMeteoProvider)(nil)

func NewOpenMeteoProvider(baseURL string, timeout time.Duration) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultOneCallTimeout
	}

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: &http.Client{Timeout: timeout},
			// Exactly one request per call.
			Backoff: BackoffConfig{
				MaxRetries:      0,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
		},
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoResponse struct {
	Current *struct {
		Time          *int64   `json:"time"`
		Temperature   float64  `json:"temperature_2m"`
		DewPoint      *float64 `json:"dew_point_2m"`
		WindSpeed     float64  `json:"wind_speed_10m"`
		WindDirection float64  `json:"wind_direction_10m"`
		IsDay         *int     `json:"is_day"`
		WeatherCode   int      `json:"weather_code"`
		Rain          float64  `json:"rain"`
		Snowfall      float64  `json:"snowfall"`
	} `json:"current"`
	Daily *struct {
		Sunrise []int64 `json:"sunrise"`
		Sunset  []int64 `json:"sunset"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, loc weather.Locality) (weather.ProviderPayload, error) {
	if err := weather.ValidateLocality(loc); err != nil {
		return weather.ProviderPayload{}, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", formatFloat(loc.Lat))
		values.Set("longitude", formatFloat(loc.Lon))
		values.Set("current", "temperature_2m,dew_point_2m,wind_speed_10m,wind_direction_10m,is_day,weather_code,rain,snowfall")
		values.Set("daily", "sunrise,sunset")
		values.Set("forecast_days", "1")
		values.Set("wind_speed_unit", "ms")
		values.Set("timeformat", "unixtime")
		values.Set("timezone", "GMT")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderPayload{}, err
	}
	defer resp.Body.Close()

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "decode body: %v", err)
	}

	cur := payload.Current
	switch {
	case cur == nil:
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current block")
	case cur.Time == nil:
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current.time")
	case cur.DewPoint == nil:
		return weather.ProviderPayload{}, p.formatError(resp.StatusCode, "missing current.dew_point_2m")
	}

	out := weather.ProviderPayload{
		Provider:    p.name,
		Temperature: cur.Temperature,
		WindSpeed:   cur.WindSpeed,
		WindDeg:     cur.WindDirection,
		DewPoint:    *cur.DewPoint,
		Dt:          *cur.Time,
	}
	if cur.IsDay != nil {
		out.Icon = mapOpenMeteoIcon(cur.WeatherCode, *cur.IsDay == 1)
	}
	if payload.Daily != nil && len(payload.Daily.Sunrise) > 0 && len(payload.Daily.Sunset) > 0 {
		out.Sunrise = payload.Daily.Sunrise[0]
		out.Sunset = payload.Daily.Sunset[0]
	}
	if cur.Rain > 0 {
		rain := cur.Rain
		out.Rain1h = &rain
	}
	if cur.Snowfall > 0 {
		// Snowfall is reported in centimetres.
		snow := cur.Snowfall * 10
		out.Snow1h = &snow
	}
	return out, nil
}

func (p *OpenMeteoProvider) formatError(status int, format string, args ...any) error {
	return &weather.UpstreamError{
		Source: p.name,
		Status: status,
		Err:    fmt.Errorf("%w: "+format, append([]any{weather.ErrUpstreamFormat}, args...)...),
	}
}

// mapOpenMeteoIcon converts a WMO weather code to an OpenWeatherMap-style
// icon code so day/night derivation works the same for both providers.
func mapOpenMeteoIcon(code int, isDay bool) string {
	suffix := weather.IconNightSuffix
	if isDay {
		suffix = weather.IconDaySuffix
	}

	var base string
	switch {
	case code == 0:
		base = "01"
	case code >= 1 && code <= 3:
		base = "03"
	case code == 45 || code == 48:
		base = "50"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		base = "10"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		base = "13"
	case code >= 95:
		base = "11"
	default:
		base = "04"
	}
	return base + suffix
}
