package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer writes tabular rows to a Google spreadsheet
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewWriter creates a writer authenticated with a service account.
// credentials is either a path to the key file or the key JSON itself.
func NewWriter(ctx context.Context, spreadsheetID, credentials string, logger *zap.Logger) (*Writer, error) {
	credsJSON, err := readCredentials(credentials)
	if err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, spreadsheetID, logger), nil
}

// NewWriterWithService wraps an existing service
func NewWriterWithService(service *sheets.Service, spreadsheetID string, logger *zap.Logger) *Writer {
	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}
}

func readCredentials(credentials string) ([]byte, error) {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return nil, fmt.Errorf("credentials not found: set sheets.credentials or GOOGLE_SHEETS_CREDENTIALS")
	}

	credsJSON := []byte(credentials)
	if !strings.HasPrefix(credentials, "{") {
		b, err := os.ReadFile(credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = b
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return credsJSON, nil
}

// CreateSheet adds a sheet at the front of the spreadsheet and returns its
// sanitized name and sheet ID (gid)
func (w *Writer) CreateSheet(ctx context.Context, sheetName string) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)
	if len(sheetName) > 100 {
		sheetName = sheetName[:100]
	}

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
					},
				},
			},
		},
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	w.logger.Info("created sheet", zap.String("sheet", sheetName), zap.Int64("sheet_id", sheetID))
	return sheetName, sheetID, nil
}

// WriteRows overwrites the sheet starting at A1
func (w *Writer) WriteRows(ctx context.Context, sheetName string, rows [][]string) error {
	valueRange := &sheets.ValueRange{Values: toValues(rows)}

	_, err := w.service.Spreadsheets.Values.Update(w.spreadsheetID, sheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.logger.Debug("wrote rows", zap.String("sheet", sheetName), zap.Int("rows", len(rows)))
	return nil
}

// AppendRows writes rows below the last filled row of column A
func (w *Writer) AppendRows(ctx context.Context, sheetName string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	resp, err := w.service.Spreadsheets.Values.Get(w.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read existing data: %w", err)
	}

	nextRow := len(resp.Values) + 1
	updateRange := fmt.Sprintf("%s!A%d", sheetName, nextRow)
	valueRange := &sheets.ValueRange{Values: toValues(rows)}

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, updateRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheet: %w", err)
	}

	w.logger.Debug("appended rows", zap.String("sheet", sheetName), zap.Int("rows", len(rows)), zap.Int("start_row", nextRow))
	return nil
}

// SheetURL returns a link that opens the given sheet
func (w *Writer) SheetURL(sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", w.spreadsheetID, sheetID)
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}
	return values
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] :
	invalidChars := []string{"/", "\\", "?", "*", "[", "]", ":"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		if strings.Contains(url, "/") {
			return ""
		}
		return strings.TrimSpace(url)
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
