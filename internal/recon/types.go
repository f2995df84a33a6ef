// Package recon reconciles compound-shipment tracking records against assay
// run dates and derives the pivoted report and the received-but-no-data worklist.
package recon

import (
	"slices"
	"strings"
)

// Column names shared by the tracking sheet, the reconciled table and the
// rendered workbook.
const (
	ColIdentifier     = "BRD"
	ColFrom           = "FROM"
	ColTo             = "TO"
	ColDateSent       = "DATE_SENT"
	ColDateReceived   = "DATE_RECEIVED"
	ColTrackingNumber = "TRACKING_NUMBER"
	ColDateRunViva    = "DATE_RUN_VIVA"
	ColDateRunBroad   = "DATE_RUN_BROAD"
)

// Value is a single table cell. A zero Value is missing, which is distinct
// from a present empty string.
type Value struct {
	S     string
	Valid bool
}

// Missing is the missing-value marker.
var Missing = Value{}

// Text wraps a present string value.
func Text(s string) Value { return Value{S: s, Valid: true} }

// String renders the cell; missing renders as "".
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return v.S
}

// Trim strips surrounding whitespace and maps an empty result to Missing.
func (v Value) Trim() Value {
	if !v.Valid {
		return v
	}
	t := strings.TrimSpace(v.S)
	if t == "" {
		return Missing
	}
	return Text(t)
}

// TrackingRecord is one shipment event from the tracking sheet.
type TrackingRecord struct {
	Identifier     string
	From           Value
	To             Value
	DateSent       Value
	DateReceived   Value
	TrackingNumber Value
	// Extra holds every other source column keyed by its header.
	Extra map[string]Value
}

// Get returns the cell for a source column name.
func (r TrackingRecord) Get(col string) Value {
	switch col {
	case ColIdentifier:
		return Text(r.Identifier)
	case ColFrom:
		return r.From
	case ColTo:
		return r.To
	case ColDateSent:
		return r.DateSent
	case ColDateReceived:
		return r.DateReceived
	case ColTrackingNumber:
		return r.TrackingNumber
	default:
		return r.Extra[col]
	}
}

// TrackingTable is the tracking sheet with its header order preserved.
type TrackingTable struct {
	Header  []string
	Records []TrackingRecord
}

// AssayResult is one experiment row from the results database.
type AssayResult struct {
	Identifier  string
	ProjectCode string
	Operator    string
	ProteinID   string
	Weight      float64
	HasWeight   bool
	Date        string
}

// ReconciledRecord is a tracking record enriched with per-site run dates.
type ReconciledRecord struct {
	TrackingRecord
	DateRunViva  Value
	DateRunBroad Value
}

// Get extends TrackingRecord.Get with the run-date columns.
func (r ReconciledRecord) Get(col string) Value {
	switch col {
	case ColDateRunViva:
		return r.DateRunViva
	case ColDateRunBroad:
		return r.DateRunBroad
	default:
		return r.TrackingRecord.Get(col)
	}
}

// ReconciledTable is the merged tracking table.
type ReconciledTable struct {
	SourceHeader []string
	Records      []ReconciledRecord
}

// Header returns the source header followed by the run-date columns in join
// order. A run-date column the source already carries keeps its position.
func (t ReconciledTable) Header() []string {
	out := make([]string, 0, len(t.SourceHeader)+2)
	out = append(out, t.SourceHeader...)
	for _, col := range []string{ColDateRunViva, ColDateRunBroad} {
		if !slices.Contains(out, col) {
			out = append(out, col)
		}
	}
	return out
}

// Rows renders every record in header order.
func (t ReconciledTable) Rows() [][]Value {
	header := t.Header()
	rows := make([][]Value, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make([]Value, len(header))
		for i, col := range header {
			row[i] = rec.Get(col)
		}
		rows = append(rows, row)
	}
	return rows
}
