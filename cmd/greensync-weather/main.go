package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	httpapi "github.com/i474232898/greensync-weather/internal/api/http"
	"github.com/i474232898/greensync-weather/internal/config"
	"github.com/i474232898/greensync-weather/internal/registry"
	"github.com/i474232898/greensync-weather/internal/scheduler"
	"github.com/i474232898/greensync-weather/internal/store"
	"github.com/i474232898/greensync-weather/internal/store/mongo"
	"github.com/i474232898/greensync-weather/internal/store/sqlite"
	"github.com/i474232898/greensync-weather/internal/weather"
	"github.com/i474232898/greensync-weather/internal/weather/providers"
	"github.com/i474232898/greensync-weather/internal/weather/stationfeed"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readings, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	reg := registry.New()
	if cfg.CustomLocalities != "" {
		customs, err := registry.ParseCustomLocalities(cfg.CustomLocalities)
		if err != nil {
			log.Fatalf("failed to parse custom localities: %v", err)
		}
		var geocode registry.GeocodeFunc
		if cfg.GeocoderAPIKey != "" {
			geocode = registry.GoogleGeocoder(cfg.GeocoderAPIKey)
		}
		if err := reg.AddCustom(customs, geocode); err != nil {
			log.Fatalf("failed to register custom localities: %v", err)
		}
	}

	targets, err := resolveTargets(reg, cfg.Targets)
	if err != nil {
		log.Fatalf("failed to resolve targets: %v", err)
	}

	// Upstream clients with resilience (throttling + backoff + circuit breaker).
	var current weather.CurrentProvider
	switch cfg.Provider {
	case "openmeteo":
		current = providers.NewOpenMeteoProvider(cfg.OpenMeteoBaseURL, cfg.OpenWeatherTimeout)
	default:
		current = providers.NewOneCallProvider(providers.OneCallConfig{
			APIKey:  cfg.OpenWeatherAPIKey,
			BaseURL: cfg.OpenWeatherBaseURL,
			Timeout: cfg.OpenWeatherTimeout,
		})
	}
	log.Printf("INFO: current conditions from %s", current.Name())
	feed := providers.NewKMAFeedProvider(providers.KMAFeedConfig{
		AuthKey:    cfg.KMAHubAPIKey,
		BaseURL:    cfg.KMAHubBaseURL,
		Timeout:    cfg.KMATimeout,
		RatePerSec: cfg.KMARatePerSec,
		Location:   cfg.Location,
	})

	insolation := weather.NewInsolationSource(
		feed,
		stationfeed.NewParser(stationfeed.DefaultConfig(), cfg.Location),
		weather.NewInsolationCache(),
		weather.SystemClock,
		cfg.Location,
	)
	reconciler := weather.NewReconciler(
		current,
		insolation,
		weather.NewFreshnessValidator(cfg.RealtimeTolerance),
		weather.SystemClock,
		cfg.Location,
	)

	// Core service orchestrating reconciliation and the store.
	service := weather.NewService(readings, reconciler, weather.SystemClock)

	// Scheduler that periodically collects and stores readings.
	var feedSpacing time.Duration
	if cfg.KMARatePerSec > 0 {
		feedSpacing = time.Duration(float64(time.Second) / cfg.KMARatePerSec)
	}
	sched := scheduler.New(scheduler.Config{
		Interval:      cfg.PollInterval,
		WarmUp:        cfg.WarmUp,
		MaxCalls:      cfg.MaxCalls,
		CycleTimeout:  weather.ReconcileTimeout(cfg.OpenWeatherTimeout, cfg.KMATimeout, feedSpacing),
		WarnRemaining: scheduler.DefaultWarnRemaining,
		Location:      cfg.Location,
	}, targets, service, weather.SystemClock)
	if cfg.AutoStartSchedule {
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
	}
	defer sched.Stop()

	app := httpapi.NewApp("greensync-weather")

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:   service,
		Registry:  reg,
		Scheduler: sched,
		Targets:   targets,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func resolveTargets(reg *registry.Registry, cfgTargets []config.TargetConfig) ([]weather.Target, error) {
	targets := make([]weather.Target, 0, len(cfgTargets))
	for _, t := range cfgTargets {
		loc, err := reg.Lookup(t.City)
		if err != nil {
			return nil, err
		}
		targets = append(targets, weather.Target{Locality: loc, FarmID: t.FarmID})
	}
	return targets, nil
}

func openStore(ctx context.Context, cfg *config.AppConfig) (weather.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongo.New(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(closeCtx)
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
