package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"aidflow/internal/backend"
	"aidflow/internal/cache"
	"aidflow/internal/cli"
	apphttp "aidflow/internal/http"
	"aidflow/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting aidflow server")

	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	allocationService, err := services.NewAllocationServiceWithDefault(
		result.Backend, result.Backend, cfg.DefaultYearStartMonth, cfg.DefaultYearStartDay)
	if err != nil {
		logger.Error("Invalid default year configuration", "error", err)
		os.Exit(1)
	}
	recordService := services.NewRecordService(result.Backend, result.Publisher, allocationService)

	// Periodic eviction of expired memoized series.
	cacheManager := cache.NewManager()
	cacheManager.Register(allocationService.SeriesCache())
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, allocationService, recordService, result.Backend, result.Backend)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Server listening", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
