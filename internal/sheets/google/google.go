package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"aidflow/internal/core"
	ports "aidflow/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads partner-reported financial rows from a Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Sheet holding transaction rows, e.g. "Transactions".
	transactionsSheet string
	budgetsSheet      string
}

// Ensure interface conformance
var (
	_ ports.TransactionSource = (*Client)(nil)
	_ ports.BudgetSource      = (*Client)(nil)
)

// Config selects the spreadsheet and sheet names to read. Credentials stay
// in the environment: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	BudgetsSheet      string
}

// withDefaults fills in the conventional sheet names.
func (c Config) withDefaults() Config {
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	c.TransactionsSheet = strings.TrimSpace(c.TransactionsSheet)
	c.BudgetsSheet = strings.TrimSpace(c.BudgetsSheet)
	if c.TransactionsSheet == "" {
		c.TransactionsSheet = "Transactions"
	}
	if c.BudgetsSheet == "" {
		c.BudgetsSheet = "Budgets"
	}
	return c
}

// New creates a Sheets client for the configured spreadsheet.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		transactionsSheet: cfg.TransactionsSheet,
		budgetsSheet:      cfg.BudgetsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// ListTransactionRows reads the transactions sheet and returns the rows that
// parse cleanly. Malformed rows are logged and skipped.
func (c *Client) ListTransactionRows(ctx context.Context) ([]core.TransactionRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:L", c.transactionsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	records, skipped := parseTransactionRows(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed transaction rows",
			"sheet", c.transactionsSheet,
			"skipped", skipped,
			"parsed", len(records))
	}
	return records, nil
}

// ListBudgetRows reads the budgets sheet and returns the rows that parse
// cleanly.
func (c *Client) ListBudgetRows(ctx context.Context) ([]core.BudgetRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.budgetsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	records, skipped := parseBudgetRows(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed budget rows",
			"sheet", c.budgetsSheet,
			"skipped", skipped,
			"parsed", len(records))
	}
	return records, nil
}
