package main

import (
	"context"
	"os"
	"time"

	"aidflow/internal/amqp"
	"aidflow/internal/cli"
	"aidflow/internal/services"
	gsheet "aidflow/internal/sheets/google"
)

// aidflow-import performs a one-shot import of transaction and budget
// rows from a Google Sheets spreadsheet into the SQLite store. Rows
// that fail to parse are skipped by the reader and never imported.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting aidflow-import")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for import")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		TransactionsSheet: cfg.GoogleSheetName,
		BudgetsSheet:      cfg.GoogleBudgetsSheetName,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Publish change notifications when a broker is configured so a
	// running worker refreshes the materialized series after import.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, importing without notifications", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	allocationService, err := services.NewAllocationServiceWithDefault(
		repo, repo, cfg.DefaultYearStartMonth, cfg.DefaultYearStartDay)
	if err != nil {
		logger.Error("Invalid default year configuration", "error", err)
		os.Exit(1)
	}
	var recordService *services.RecordService
	if amqpClient != nil {
		recordService = services.NewRecordService(repo, amqpClient, allocationService)
	} else {
		recordService = services.NewRecordService(repo, nil, allocationService)
	}

	importService := services.NewImportService(sheetsClient, sheetsClient, recordService)

	result, err := importService.Run(ctx)
	if err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Import complete",
		"transactions_imported", result.TransactionsImported,
		"transactions_read", result.TransactionsRead,
		"budgets_imported", result.BudgetsImported,
		"budgets_read", result.BudgetsRead)
}
