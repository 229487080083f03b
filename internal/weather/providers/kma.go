package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/greensync-weather/internal/common"
	"github.com/i474232898/greensync-weather/internal/weather"
)

const (
	DefaultKMABaseURL = "https://apihub.kma.go.kr/api/typ01/url/kma_sfctm2.php"
	// The hub is slower and less available than the global provider; a short
	// timeout starves the candidate loop.
	DefaultKMATimeout = 10 * time.Second

	maxFeedBody = 1 << 20
)

// KMAFeedConfig configures KMAFeedProvider.
type KMAFeedConfig struct {
	AuthKey    string
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	// Location is the timezone the hub expects tm in.
	Location *time.Location
}

// KMAFeedProvider implements weather.StationFeed for the KMA API Hub hourly
// surface observation text endpoint.
type KMAFeedProvider struct {
	name    string
	authKey string
	baseURL string
	loc     *time.Location
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.StationFeed = (*KMAFeedProvider)(nil)

func NewKMAFeedProvider(cfg KMAFeedConfig) *KMAFeedProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultKMABaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultKMATimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &KMAFeedProvider{
		name:    "kma-hub",
		authKey: cfg.AuthKey,
		baseURL: cfg.BaseURL,
		loc:     cfg.Location,
		httpCfg: HTTPClientConfig{
			Client: &http.Client{Timeout: cfg.Timeout},
			// Exactly one request per call.
			Backoff: BackoffConfig{
				MaxRetries:      0,
				InitialInterval: 1 * time.Second,
				MaxInterval:     2 * time.Second,
			},
			Limiter: limiter,
		},
		circuit: newBreaker("kma-hub"),
	}
}

func (p *KMAFeedProvider) Name() string {
	return p.name
}

// FetchStationLine returns the raw text body for stationID at ts. The minute
// component of ts is always sent as "00".
func (p *KMAFeedProvider) FetchStationLine(ctx context.Context, stationID int, ts time.Time) (string, error) {
	if p.authKey == "" {
		return "", &weather.UpstreamError{Source: p.name, Err: fmt.Errorf("%w: auth key is not configured", weather.ErrAuth)}
	}
	tm := common.FormatStamp(common.TopOfHour(ts.In(p.loc)), p.loc)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("tm", tm)
		values.Set("stn", strconv.Itoa(stationID))
		values.Set("help", "1")
		values.Set("authKey", p.authKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return "", classifyTransport(p.name, err)
	}
	return string(body), nil
}
