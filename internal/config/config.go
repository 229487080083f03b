package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// TargetConfig names a registry locality and the farm its readings belong to.
type TargetConfig struct {
	City   string `validate:"required"`
	FarmID int64  `validate:"gt=0"`
}

type AppConfig struct {
	// Provider selects the current-conditions source.
	Provider         string `validate:"oneof=openweathermap openmeteo"`
	OpenMeteoBaseURL string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration `validate:"gt=0"`

	KMAHubAPIKey  string
	KMAHubBaseURL string
	KMATimeout    time.Duration `validate:"gt=0"`
	KMARatePerSec float64       `validate:"gte=0"`

	// Scheduler budget and cadence.
	MaxCalls     int64         `validate:"gt=0"`
	PollInterval time.Duration `validate:"gte=1m"`
	WarmUp       time.Duration `validate:"gte=0"`

	RealtimeTolerance time.Duration  `validate:"gt=0"`
	Timezone          string         `validate:"required"`
	Location          *time.Location `validate:"-"`

	Targets           []TargetConfig `validate:"min=1,dive"`
	CustomLocalities  string
	GeocoderAPIKey    string
	AutoStartSchedule bool

	StoreDriver string `validate:"oneof=memory sqlite mongo"`
	SQLitePath  string `validate:"required_if=StoreDriver sqlite"`
	MongoURI    string `validate:"required_if=StoreDriver mongo"`
	MongoDB     string `validate:"required_if=StoreDriver mongo"`

	// In-memory store retention.
	StoreMaxHistory int           // max number of readings per farm (0 = unlimited)
	StoreMaxAge     time.Duration // max age of readings (0 = unlimited)

	Port string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Provider = strings.ToLower(getenvDefault("WEATHER_PROVIDER", "openweathermap"))
	cfg.OpenMeteoBaseURL = os.Getenv("OPENMETEO_BASE_URL")

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = os.Getenv("OPENWEATHER_BASE_URL")
	if cfg.OpenWeatherTimeout, err = getenvDuration("OPENWEATHER_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	cfg.KMAHubAPIKey = os.Getenv("KMA_HUB_API_KEY")
	cfg.KMAHubBaseURL = os.Getenv("KMA_HUB_BASE_URL")
	if cfg.KMATimeout, err = getenvDuration("KMA_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.KMARatePerSec, err = getenvFloat("KMA_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}

	cfg.MaxCalls = int64(getenvInt("WEATHER_MAX_CALLS", 1000))
	if cfg.PollInterval, err = getenvDuration("WEATHER_POLL_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.WarmUp, err = getenvDuration("WEATHER_WARMUP", "3s"); err != nil {
		return nil, err
	}
	if cfg.RealtimeTolerance, err = getenvDuration("REALTIME_TOLERANCE", "15m"); err != nil {
		return nil, err
	}
	cfg.AutoStartSchedule = getenvBool("WEATHER_AUTOSTART", true)

	cfg.Timezone = getenvDefault("WEATHER_TIMEZONE", "Asia/Seoul")
	cfg.Location = LoadLocation(cfg.Timezone)

	if cfg.Targets, err = loadTargets(); err != nil {
		return nil, err
	}
	cfg.CustomLocalities = os.Getenv("WEATHER_CUSTOM_LOCALITIES")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", "memory"))
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "greensync-weather.db")
	cfg.MongoURI = os.Getenv("MONGO_URI")
	cfg.MongoDB = getenvDefault("MONGO_DB", "greensync")

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 8640) // roughly 30 days at 5-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "720h"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadLocation resolves name, falling back to a fixed UTC+9 zone when the
// tz database has no entry for it.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("WARN: unknown timezone %q (%v); using fixed KST", name, err)
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// loadTargets pairs WEATHER_LOCATION_CITY with WEATHER_FARM_ID. Both are
// comma-separated lists of equal length.
func loadTargets() ([]TargetConfig, error) {
	cities := splitList(getenvDefault("WEATHER_LOCATION_CITY", "seoul"))
	farmIDs := splitList(getenvDefault("WEATHER_FARM_ID", "1"))
	if len(cities) != len(farmIDs) {
		return nil, fmt.Errorf("number of cities and farm ids must be the same")
	}

	var targets []TargetConfig
	for i := range cities {
		id, err := strconv.ParseInt(farmIDs[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_FARM_ID %q: %w", farmIDs[i], err)
		}
		targets = append(targets, TargetConfig{City: cities[i], FarmID: id})
	}
	return targets, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
