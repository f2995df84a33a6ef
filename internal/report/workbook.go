// Package report renders the reconciliation workbook and persists it
// through a blob store.
package report

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"trackrecon/internal/recon"
)

// Tab names, in workbook order.
const (
	SheetUpdated  = "Updated_Tracking"
	SheetPivoted  = "Pivoted_Tracking"
	SheetWorklist = "Cmpds_Received_no_Data"
)

// ContentType is the MIME type of an .xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook holds the three derived tables of one run.
type Workbook struct {
	Updated  recon.ReconciledTable
	Pivoted  recon.PivotedReport
	Worklist recon.NotRunWorklist
}

// FileName builds "<base>_APPVersion_<version>.xlsx". A trailing ".xlsx" on
// base is dropped and every "." in the last path element becomes "_".
func FileName(base, version string) string {
	dir, name := path.Split(strings.TrimSpace(base))
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name = name[:len(name)-len(".xlsx")]
	}
	name = strings.ReplaceAll(name+"_APPVersion_"+version, ".", "_")
	return dir + name + ".xlsx"
}

// Render writes the workbook to xlsx bytes. Missing cells are left blank.
func (w Workbook) Render() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	tabs := []struct {
		name string
		rows [][]string
	}{
		{SheetUpdated, updatedRows(w.Updated)},
		{SheetPivoted, PivotRows(w.Pivoted)},
		{SheetWorklist, WorklistRows(w.Worklist, true)},
	}
	for i, tab := range tabs {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), tab.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(tab.name); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", tab.name, err)
		}
		if err := writeRows(f, tab.name, tab.rows); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			if v == "" {
				continue
			}
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %s: %w", sheet, err)
	}
	return nil
}

func updatedRows(t recon.ReconciledTable) [][]string {
	out := [][]string{t.Header()}
	for _, row := range t.Rows() {
		out = append(out, valueStrings(row))
	}
	return out
}

// PivotRows lays out the pivoted report as a grid. The first three rows are
// the column index (field, FROM, TO); the fourth labels the identifier column.
func PivotRows(p recon.PivotedReport) [][]string {
	width := 1 + len(recon.PivotFields)*len(p.Routes)
	fields := make([]string, 0, width)
	froms := make([]string, 0, width)
	tos := make([]string, 0, width)
	fields = append(fields, "")
	froms = append(froms, recon.ColFrom)
	tos = append(tos, recon.ColTo)
	for _, field := range recon.PivotFields {
		for _, route := range p.Routes {
			fields = append(fields, field)
			froms = append(froms, route.From)
			tos = append(tos, route.To)
		}
	}
	out := [][]string{fields, froms, tos, {recon.ColIdentifier}}
	for _, id := range p.Identifiers {
		out = append(out, append([]string{id}, p.Row(id)...))
	}
	return out
}

// WorklistRows renders the worklist with missing padding as "". The header
// row (site names) comes first when withHeader is set.
func WorklistRows(w recon.NotRunWorklist, withHeader bool) [][]string {
	var out [][]string
	if withHeader {
		out = append(out, w.Header())
	}
	for _, row := range w.Rows() {
		out = append(out, valueStrings(row))
	}
	return out
}

func valueStrings(row []recon.Value) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.String()
	}
	return out
}
