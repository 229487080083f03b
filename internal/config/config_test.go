package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_CITY", "")
	t.Setenv("WEATHER_FARM_ID", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("WEATHER_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxCalls != 1000 || cfg.PollInterval != 5*time.Minute || cfg.WarmUp != 3*time.Second {
		t.Fatalf("unexpected scheduler defaults %+v", cfg)
	}
	if cfg.RealtimeTolerance != 15*time.Minute {
		t.Fatalf("expected 15m tolerance, got %v", cfg.RealtimeTolerance)
	}
	if cfg.OpenWeatherTimeout >= cfg.KMATimeout {
		t.Fatalf("feed timeout %v must exceed provider timeout %v", cfg.KMATimeout, cfg.OpenWeatherTimeout)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].City != "seoul" || cfg.Targets[0].FarmID != 1 {
		t.Fatalf("unexpected default targets %+v", cfg.Targets)
	}
	if cfg.Provider != "openweathermap" {
		t.Fatalf("expected openweathermap provider by default, got %q", cfg.Provider)
	}
	if cfg.StoreDriver != "memory" || cfg.Location == nil {
		t.Fatalf("unexpected store/location defaults %+v", cfg)
	}
}

func TestLoadTargets(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_CITY", "seoul, busan")
	t.Setenv("WEATHER_FARM_ID", "1,2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Targets) != 2 || cfg.Targets[1].City != "busan" || cfg.Targets[1].FarmID != 2 {
		t.Fatalf("unexpected targets %+v", cfg.Targets)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mismatched targets", map[string]string{"WEATHER_LOCATION_CITY": "seoul,busan", "WEATHER_FARM_ID": "1"}},
		{"bad farm id", map[string]string{"WEATHER_FARM_ID": "abc"}},
		{"zero farm id", map[string]string{"WEATHER_FARM_ID": "0"}},
		{"bad interval", map[string]string{"WEATHER_POLL_INTERVAL": "soon"}},
		{"interval below a minute", map[string]string{"WEATHER_POLL_INTERVAL": "10s"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis"}},
		{"unknown provider", map[string]string{"WEATHER_PROVIDER": "darksky"}},
		{"mongo without uri", map[string]string{"STORE_DRIVER": "mongo", "MONGO_URI": ""}},
		{"negative budget", map[string]string{"WEATHER_MAX_CALLS": "-5"}},
		{"bad rate", map[string]string{"KMA_RATE_PER_SEC": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WEATHER_LOCATION_CITY", "seoul")
			t.Setenv("WEATHER_FARM_ID", "1")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadLocationFallback(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 9*60*60 {
		t.Fatalf("expected +09:00 fallback, got %d", offset)
	}
}
