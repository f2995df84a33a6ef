// Package tracking loads the compound-shipment tracking sheet from a local
// file or Google Sheets and writes the worklist back to Google Sheets.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trackrecon/internal/recon"
)

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("tracking: missing required column")

// RequiredColumns must appear in the tracking header.
var RequiredColumns = []string{recon.ColIdentifier, recon.ColFrom, recon.ColTo, recon.ColDateReceived}

// Source loads the tracking table.
type Source interface {
	Load(ctx context.Context) (recon.TrackingTable, error)
}

// cellFunc converts a raw cell to a Value; sources differ in how blanks map.
type cellFunc func(raw string) recon.Value

func presentCell(raw string) recon.Value { return recon.Text(raw) }

func blankIsMissing(raw string) recon.Value {
	if raw == "" {
		return recon.Missing
	}
	return recon.Text(raw)
}

// buildTable maps a header row and data rows onto a TrackingTable. Cells past
// the end of a short row are missing. Rows without an identifier are skipped.
func buildTable(header []string, rows [][]string, cell cellFunc, log *zap.Logger) (recon.TrackingTable, error) {
	names := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if _, dup := index[names[i]]; !dup {
			index[names[i]] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return recon.TrackingTable{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	table := recon.TrackingTable{Header: names, Records: make([]recon.TrackingRecord, 0, len(rows))}
	for n, row := range rows {
		get := func(col string) recon.Value {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return recon.Missing
			}
			return cell(row[i])
		}
		id := get(recon.ColIdentifier)
		if strings.TrimSpace(id.S) == "" {
			log.Warn("skipping tracking row without identifier", zap.Int("row", n+2))
			continue
		}
		rec := recon.TrackingRecord{
			Identifier:     id.S,
			From:           get(recon.ColFrom),
			To:             get(recon.ColTo),
			DateSent:       get(recon.ColDateSent),
			DateReceived:   get(recon.ColDateReceived),
			TrackingNumber: get(recon.ColTrackingNumber),
		}
		for _, name := range names {
			switch name {
			case recon.ColIdentifier, recon.ColFrom, recon.ColTo, recon.ColDateSent, recon.ColDateReceived, recon.ColTrackingNumber,
				recon.ColDateRunViva, recon.ColDateRunBroad:
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]recon.Value)
			}
			rec.Extra[name] = get(name)
		}
		if len(recon.NormalizeIdentifier(rec.Identifier)) < recon.IdentifierLength {
			log.Warn("identifier shorter than normalized length",
				zap.String("identifier", rec.Identifier), zap.Int("row", n+2))
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}
