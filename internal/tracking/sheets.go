package tracking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"trackrecon/internal/recon"
)

// SheetsSource reads the tracking sheet from Google Sheets and writes the
// worklist back into a tab of the same spreadsheet.
type SheetsSource struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
	log           *zap.Logger
}

// SheetsConfig locates the spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string
	ReadRange     string
}

// NewSheetsSource builds a Sheets client. Callers pass option.WithCredentialsFile
// for a service account; tests pass an endpoint and HTTP client.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, log *zap.Logger, opts ...option.ClientOption) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id required")
	}
	if cfg.ReadRange == "" {
		return nil, fmt.Errorf("sheets: read range required")
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SheetsSource{svc: svc, spreadsheetID: cfg.SpreadsheetID, readRange: cfg.ReadRange, log: log}, nil
}

// Load implements Source. The first returned row is the header. Empty strings
// stay present; cells past the end of a short row are missing.
func (s *SheetsSource) Load(ctx context.Context) (recon.TrackingTable, error) {
	s.log.Info("Reading in original tracking file...",
		zap.String("spreadsheet", s.spreadsheetID), zap.String("range", s.readRange))
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return recon.TrackingTable{}, fmt.Errorf("read tracking sheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return recon.TrackingTable{}, fmt.Errorf("tracking sheet %s is empty", s.readRange)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	table, err := buildTable(rows[0], rows[1:], presentCell, s.log)
	if err != nil {
		return recon.TrackingTable{}, fmt.Errorf("tracking sheet: %w", err)
	}
	s.log.Info("read tracking sheet", zap.Int("records", len(table.Records)))
	return table, nil
}

// WriteWorklist clears the tab and writes header then rows from A1.
func (s *SheetsSource) WriteWorklist(ctx context.Context, tab string, header []string, rows [][]string) error {
	if tab == "" {
		return fmt.Errorf("sheets: worklist tab required")
	}
	rng := quoteSheetName(tab)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear worklist tab: %w", err)
	}
	values := make([][]any, 0, len(rows)+1)
	values = append(values, toRow(header))
	for _, r := range rows {
		values = append(values, toRow(r))
	}
	body := &sheets.ValueRange{Range: rng + "!A1", MajorDimension: "ROWS", Values: values}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng+"!A1", body).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write worklist tab: %w", err)
	}
	s.log.Info("wrote worklist", zap.String("tab", tab), zap.Int("rows", len(rows)))
	return nil
}

// quoteSheetName quotes a tab name for A1 notation; embedded apostrophes are doubled.
func quoteSheetName(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
