package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	ports "saldo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheDuration = 2 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Row index cache: transaction ID -> 1-based sheet row.
	mu                 sync.Mutex
	rowIndex           map[int64]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	now                func() time.Time
}

// Ensure interface conformance
var _ ports.TransactionMirror = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Transactions").
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName), nil
}

func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultCacheDuration,
		now:                time.Now,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// EnsureHeader writes header into row 1 unless it is already there.
func (c *Client) EnsureHeader(ctx context.Context, header []string) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	rng := fmt.Sprintf("%s!1:1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && slices.Equal(toStrings(resp.Values[0]), header) {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{toRow(header)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheetName, 1, len(header)), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header in sheet %s: %w", c.sheetName, err)
	}
	slog.InfoContext(ctx, "Sheet header written", "sheet", c.sheetName, "columns", len(header))
	return nil
}

// Upsert overwrites the row holding id, or writes cells to the next free row.
func (c *Client) Upsert(ctx context.Context, id int64, cells []string) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}
	row, found := c.rowIndex[id]
	if !found {
		row = c.cachedRowCount + 1
	}

	vr := &gsheet.ValueRange{Values: [][]any{toRow(cells)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheetName, row, len(cells)), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("write row %d in sheet %s: %w", row, c.sheetName, err)
	}

	c.rowIndex[id] = row
	if !found {
		c.cachedRowCount = row
	}
	slog.DebugContext(ctx, "Sheet row written", "id", id, "row", row, "appended", !found)
	return nil
}

// Delete clears the row holding id. The row stays in place so the rows
// of other transactions keep their positions.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}
	row, ok := c.rowIndex[id]
	if !ok {
		return nil
	}

	rng := fmt.Sprintf("%s!%d:%d", c.sheetName, row, row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(c.rowIndex, id)
	slog.DebugContext(ctx, "Sheet row cleared", "id", id, "row", row)
	return nil
}

// InvalidateRowCache forces the next write to re-read the ID column.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.cacheExpiresAt = time.Time{}
}

// loadIndex refreshes the row index from column A when the cache expired.
// Callers hold c.mu.
func (c *Client) loadIndex(ctx context.Context) error {
	if c.rowIndex != nil && c.now().Before(c.cacheExpiresAt) {
		return nil
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read ids from %s: %w", c.sheetName, err)
	}
	c.rowIndex, c.cachedRowCount = parseIndex(resp.Values)
	c.cacheExpiresAt = c.now().Add(c.cacheValidDuration)
	return nil
}

// parseIndex maps IDs found in the first column to their 1-based row and
// returns the number of used rows, the header included. Rows whose first
// cell is not an ID (header, cleared rows) are skipped.
func parseIndex(values [][]any) (map[int64]int, int) {
	index := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		index[id] = i + 1
	}
	rows := len(values)
	if rows == 0 {
		// Keep row 1 for the header.
		rows = 1
	}
	return index, rows
}

// rowRange returns the A1 range covering width cells of row.
func rowRange(sheet string, row, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, columnName(width), row)
}

// columnName converts a 1-based column number to letters (1 -> A, 27 -> AA).
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, v := range cells {
		out[i] = v
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
