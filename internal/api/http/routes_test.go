package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/greensync-weather/internal/registry"
	"github.com/i474232898/greensync-weather/internal/scheduler"
	"github.com/i474232898/greensync-weather/internal/store"
	"github.com/i474232898/greensync-weather/internal/weather"
)

var now = time.Date(2025, 1, 15, 13, 2, 0, 0, time.UTC)

type stubProvider struct {
	err   error
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchCurrent(_ context.Context, _ weather.Locality) (weather.ProviderPayload, error) {
	p.calls++
	if p.err != nil {
		return weather.ProviderPayload{}, p.err
	}
	return weather.ProviderPayload{
		Provider:    "stub",
		Temperature: 1.5,
		WindSpeed:   2,
		WindDeg:     45,
		DewPoint:    -7,
		Icon:        "01n",
		Dt:          now.Unix(),
	}, nil
}

type testEnv struct {
	app      *fiber.App
	provider *stubProvider
	store    *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := func() time.Time { return now }
	p := &stubProvider{}
	mem := store.NewMemoryStore(0, 0).WithClock(clock)
	rec := weather.NewReconciler(p, nil, weather.NewFreshnessValidator(weather.DefaultRealtimeTolerance), clock, time.UTC)
	svc := weather.NewService(mem, rec, clock)
	reg := registry.New()

	seoul, err := reg.Lookup("seoul")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	targets := []weather.Target{{Locality: seoul, FarmID: 1}}
	sched := scheduler.New(scheduler.Config{MaxCalls: 1, Interval: time.Hour, WarmUp: time.Hour}, targets, svc, clock)
	t.Cleanup(sched.Stop)

	app := NewApp("greensync-weather-test")
	RegisterRoutes(app, Deps{Service: svc, Registry: reg, Scheduler: sched, Targets: targets})
	return &testEnv{app: app, provider: p, store: mem}
}

func (e *testEnv) do(t *testing.T, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode %s: %v (%s)", target, err, body)
		}
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	code, body := newTestEnv(t).do(t, http.MethodGet, "/health")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", code, body)
	}
}

func TestCityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/weather/city/seoul")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	current := body["current"].(map[string]any)
	if current["dewPoint"].(float64) != -7 {
		t.Fatalf("unexpected payload %v", current)
	}

	code, _ = env.do(t, http.MethodGet, "/api/v1/weather/city/atlantis")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown city, got %d", code)
	}
}

func TestMappedEndpointSavesReading(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/weather/mapped/%EC%84%9C%EC%9A%B8?farmId=7")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	data := body["data"].(map[string]any)
	if data["isDay"] != false || data["insolation"].(float64) != 0 || data["observationTime"] != "202501151302" {
		t.Fatalf("unexpected reading %v", data)
	}

	saved, err := env.store.GetLatest(context.Background(), 7)
	if err != nil {
		t.Fatalf("reading not saved: %v", err)
	}
	if saved.OutsideTemp != 1.5 {
		t.Fatalf("unexpected saved reading %+v", saved)
	}

	code, body = env.do(t, http.MethodGet, "/api/v1/weather/latest?farmId=7")
	if code != http.StatusOK || body["farmId"].(float64) != 7 {
		t.Fatalf("unexpected latest response %d %v", code, body)
	}
}

func TestMappedEndpointUpstreamErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&weather.UpstreamError{Source: "stub", Status: 401, Err: weather.ErrAuth}, http.StatusBadGateway},
		{&weather.UpstreamError{Source: "stub", Status: 429, Err: weather.ErrRateLimited}, http.StatusTooManyRequests},
		{&weather.UpstreamError{Source: "stub", Err: weather.ErrTimeout}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		env.provider.err = tt.err
		code, body := env.do(t, http.MethodGet, "/api/v1/weather/mapped/seoul")
		if code != tt.code {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.code, code)
		}
		if body["error"] != true {
			t.Fatalf("expected error body, got %v", body)
		}
	}
}

func TestMappedAllTargets(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/v1/weather/mapped")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %v", results)
	}
}

func TestQueryValidation(t *testing.T) {
	env := newTestEnv(t)
	bad := []string{
		"/api/v1/weather/latest",
		"/api/v1/weather/latest?farmId=-1",
		"/api/v1/weather/history?farmId=1",
		"/api/v1/weather/history?farmId=1&from=2025-01-15T13:00:00Z&to=2025-01-15T12:00:00Z",
		"/api/v1/weather/history?farmId=1&from=yesterday&to=today",
		"/api/v1/weather/stats?farmId=1&period=1y",
		"/api/v1/weather/mapped/seoul?farmId=abc",
	}
	for _, target := range bad {
		if code, _ := env.do(t, http.MethodGet, target); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, code)
		}
	}

	if code, _ := env.do(t, http.MethodGet, "/api/v1/weather/latest?farmId=99"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for farm without readings, got %d", code)
	}
}

func TestHistoryAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/weather/mapped/seoul?farmId=1")
	env.do(t, http.MethodGet, "/api/v1/weather/mapped/seoul?farmId=1")

	code, body := env.do(t, http.MethodGet, "/api/v1/weather/history?farmId=1&from=2025-01-15T12:00:00Z&to=2025-01-15T14:00:00Z")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	if n := len(body["readings"].([]any)); n != 2 {
		t.Fatalf("expected 2 readings, got %d", n)
	}

	code, body = env.do(t, http.MethodGet, "/api/v1/weather/stats?farmId=1&period=7d")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	if body["period"] != "7d" || body["recordCount"].(float64) != 2 || body["avgTemp"].(float64) != 1.5 {
		t.Fatalf("unexpected stats %v", body)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/scheduler")
	if code != http.StatusOK || body["state"] != string(scheduler.StateIdle) {
		t.Fatalf("unexpected status %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/scheduler/start")
	if code != http.StatusOK || body["state"] != string(scheduler.StateRunning) {
		t.Fatalf("unexpected start response %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/scheduler/stop")
	if code != http.StatusOK || body["state"] != string(scheduler.StateIdle) {
		t.Fatalf("unexpected stop response %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/scheduler/reset")
	if code != http.StatusOK || body["callCount"].(float64) != 0 {
		t.Fatalf("unexpected reset response %d %v", code, body)
	}
}
