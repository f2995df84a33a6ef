package tracking

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"trackrecon/internal/recon"
)

// FileSource reads the tracking sheet from a local delimited-text file
// (.csv, .tsv, .txt) or an .xlsx workbook. Blank cells are missing.
type FileSource struct {
	Path string
	// Sheet selects the worksheet of an .xlsx file; empty means the first sheet.
	Sheet string
	Log   *zap.Logger
}

// Load implements Source.
func (f FileSource) Load(ctx context.Context) (recon.TrackingTable, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Reading in original tracking file...", zap.String("path", f.Path))
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(f.Path, f.Sheet)
	case ".tsv", ".tab":
		rows, err = readDelimited(f.Path, '\t')
	default:
		rows, err = readDelimited(f.Path, ',')
	}
	if err != nil {
		return recon.TrackingTable{}, err
	}
	if len(rows) == 0 {
		return recon.TrackingTable{}, fmt.Errorf("tracking file %s is empty", f.Path)
	}
	table, err := buildTable(rows[0], rows[1:], blankIsMissing, log)
	if err != nil {
		return recon.TrackingTable{}, fmt.Errorf("tracking file %s: %w", f.Path, err)
	}
	log.Info("read tracking file", zap.Int("records", len(table.Records)))
	return table, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracking file: %w", err)
	}
	defer func() { _ = fh.Close() }()
	r := csv.NewReader(fh)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse tracking file: %w", err)
	}
	return rows, nil
}

func readWorkbook(path, sheet string) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open tracking workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()
	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}
