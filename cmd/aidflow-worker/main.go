package main

import (
	"context"
	"os"
	"time"

	"aidflow/internal/amqp"
	"aidflow/internal/cli"
	"aidflow/internal/services"
	"aidflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting aidflow-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The worker materializes yearly series, so it always runs on SQLite.
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	allocationService, err := services.NewAllocationServiceWithDefault(
		repo, repo, cfg.DefaultYearStartMonth, cfg.DefaultYearStartDay)
	if err != nil {
		logger.Error("Invalid default year configuration", "error", err)
		os.Exit(1)
	}

	processorConfig := services.DefaultSeriesProcessorConfig()
	if cfg.RefreshInterval > 0 {
		processorConfig.PollInterval = cfg.RefreshInterval
	}
	if cfg.RefreshParallelism > 0 {
		processorConfig.Parallelism = cfg.RefreshParallelism
	}
	processor := services.NewSeriesProcessor(allocationService, repo, repo, processorConfig)

	// AMQP is optional: without it the periodic poll still keeps the
	// materialized series fresh, just with more latency.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing with polling only", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - refreshing on poll interval only")
	}

	refreshWorker := worker.NewRefreshWorker(allocationService, processor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := processor.Stop(stopCtx); err != nil {
			logger.Error("Processor shutdown error", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start series processor", "error", err)
		os.Exit(1)
	}
	logger.Info("Series processor started", "poll_interval", processorConfig.PollInterval)

	if amqpClient != nil {
		go func() {
			handler := func(msg *amqp.RecordChangedMessage) error {
				return refreshWorker.HandleRecordChanged(ctx, msg)
			}
			if err := amqpClient.ConsumeRecordChanges(ctx, handler); err != nil && err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
