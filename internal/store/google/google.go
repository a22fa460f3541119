// Package google stores transactions as rows of a Google Sheets tab with the
// columns ID, Date, Type, Description, Amount, Category, Owner.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

const DefaultSheetName = "Transazioni"

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID string
	SheetName     string
	Owner         string
	// CredentialsJSON is a service account key; ignored when Options are set.
	CredentialsJSON []byte
	// Options replace the default authentication (used by tests to point the
	// client at a fake endpoint).
	Options []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	owner         string

	sheetID    int64
	hasSheetID bool
}

var _ store.TransactionStore = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	opts := cfg.Options
	if len(opts) == 0 {
		if len(cfg.CredentialsJSON) == 0 {
			return nil, errors.New("missing service account credentials")
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(cfg.CredentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		owner:         cfg.Owner,
	}, nil
}

// LoadCredentials returns inline JSON when given, otherwise the content of
// file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func LoadCredentials(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if strings.TrimSpace(file) == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:G", c.sheetName)
}

func (c *Client) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	txs, skipped := parseRows(resp.Values, c.owner)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed sheet rows", "sheet", c.sheetName, "skipped", skipped)
	}
	return txs, nil
}

// AppendTransaction adds t as a new row and returns the updated range.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if t.Owner == "" {
		t.Owner = c.owner
	}

	vr := &gsheet.ValueRange{Values: [][]any{formatRow(t)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// DeleteTransaction removes the row whose ID column equals id.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, id)
	if row < 0 {
		return fmt.Errorf("transaction %d: %w", id, store.ErrNotFound)
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row+1, err)
	}
	slog.InfoContext(ctx, "Deleted transaction row", "id", id, "row", row+1)
	return nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.hasSheetID {
		return c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			c.sheetID, c.hasSheetID = sh.Properties.SheetId, true
			return c.sheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

func formatRow(t core.Transaction) []any {
	return []any{
		strconv.FormatInt(t.ID, 10),
		t.Date,
		string(t.Type),
		t.Description,
		t.Amount.String(),
		t.Category,
		t.Owner,
	}
}
