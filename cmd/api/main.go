package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/api"
	"github.com/apartment-estimator/backend/internal/api/handlers"
	"github.com/apartment-estimator/backend/internal/cache/redis"
	"github.com/apartment-estimator/backend/internal/diagnostics"
	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/metrics"
	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/storage/sqlite"
	"github.com/apartment-estimator/backend/internal/web"
	"github.com/apartment-estimator/backend/pkg/config"
	appLogger "github.com/apartment-estimator/backend/pkg/logger"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting apartment price estimator")

	metrics.Init()

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	var citySource reference.CitySource = reference.CSVSource{Path: cfg.Reference.CitiesPath}
	if cfg.Reference.CitiesDB != "" {
		store, err := sqlite.NewClient(cfg.Reference.CitiesDB)
		if err != nil {
			appLogger.Fatal("Failed to open city store", zap.Error(err))
		}
		defer store.Close()
		citySource = store
		checks["sqlite"] = store
	}

	provider, err := reference.Load(ctx, citySource, cfg.Reference.ArtifactsDir)
	if err != nil {
		appLogger.Fatal("Failed to load reference data", zap.Error(err))
	}

	if _, ok := provider.Cities().Lookup(cfg.Reference.DefaultCity); !ok {
		appLogger.Warn("Default city not in reference table", zap.String("city", cfg.Reference.DefaultCity))
	}

	metrics.ReferenceCities.Set(float64(provider.Cities().Len()))
	for _, r := range diagnostics.SummarizeProvider(provider) {
		metrics.ErrorSamples.WithLabelValues(r.Category, "absolute").Set(float64(r.AbsSamples))
		metrics.ErrorSamples.WithLabelValues(r.Category, "signed").Set(float64(r.SignedSamples))
		if !r.BoundsUsable {
			appLogger.Warn("Artifact cannot produce bounds", zap.String("category", r.Category), zap.Int("signed_samples", r.SignedSamples))
		}
	}

	var cache estimation.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx,
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without estimate cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
			checks["redis"] = redisClient
		}
	}

	builder := features.NewBuilder(provider.Cities(), provider.Schemas(), features.DefaultMapping)
	builder.CheckSchemas()
	service := estimation.NewService(provider, builder, cache)

	renderer, err := web.NewRenderer(cfg.Display.Locale, builder.Mapping())
	if err != nil {
		appLogger.Fatal("Failed to create renderer", zap.Error(err))
	}

	app, stop := api.NewApp(api.Deps{
		Service:     service,
		Renderer:    renderer,
		Server:      cfg.Server,
		RateLimit:   cfg.RateLimit,
		DefaultCity: cfg.Reference.DefaultCity,
		Checks:      checks,
		AccessLog:   true,
	})
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
