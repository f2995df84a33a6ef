package recon

import (
	"cmp"
	"slices"
	"strings"
)

// PivotFields are the value columns of the pivoted report, in column order.
var PivotFields = []string{ColDateReceived, ColDateRunBroad, ColDateRunViva}

// Route is an (origin, destination) column group.
type Route struct {
	From string
	To   string
}

type pivotKey struct {
	id    string
	route Route
}

// PivotedReport has one row per identifier and one column per
// (field, route) pair.
type PivotedReport struct {
	Identifiers []string
	Routes      []Route
	cells       map[pivotKey][]string // indexed like PivotFields
}

// Pivot groups the reconciled table by identifier with (origin, destination)
// column groups. Colliding cells are joined with a single space in record
// order; missing cells contribute "". Records without an origin or a
// destination have no column group and are skipped.
func Pivot(table ReconciledTable) PivotedReport {
	p := PivotedReport{cells: make(map[pivotKey][]string)}
	seenID := make(map[string]struct{})
	seenRoute := make(map[Route]struct{})
	parts := make(map[pivotKey][][]string)

	for _, rec := range table.Records {
		if !rec.From.Valid || !rec.To.Valid {
			continue
		}
		route := Route{From: rec.From.S, To: rec.To.S}
		key := pivotKey{id: rec.Identifier, route: route}
		if _, ok := seenID[rec.Identifier]; !ok {
			seenID[rec.Identifier] = struct{}{}
			p.Identifiers = append(p.Identifiers, rec.Identifier)
		}
		if _, ok := seenRoute[route]; !ok {
			seenRoute[route] = struct{}{}
			p.Routes = append(p.Routes, route)
		}
		if parts[key] == nil {
			parts[key] = make([][]string, len(PivotFields))
		}
		for i, field := range PivotFields {
			parts[key][i] = append(parts[key][i], rec.Get(field).String())
		}
	}
	for key, fields := range parts {
		joined := make([]string, len(fields))
		for i, vals := range fields {
			joined[i] = strings.Join(vals, " ")
		}
		p.cells[key] = joined
	}
	slices.Sort(p.Identifiers)
	slices.SortFunc(p.Routes, func(a, b Route) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return p
}

// Cell returns the rendered cell for identifier, field and route. Absent
// combinations render as "".
func (p PivotedReport) Cell(id, field string, route Route) string {
	vals, ok := p.cells[pivotKey{id: id, route: route}]
	if !ok {
		return ""
	}
	i := slices.Index(PivotFields, field)
	if i < 0 {
		return ""
	}
	return vals[i]
}

// Occupied reports whether any record contributed to the (identifier, route) group.
func (p PivotedReport) Occupied(id string, route Route) bool {
	_, ok := p.cells[pivotKey{id: id, route: route}]
	return ok
}

// Row renders one identifier row: fields outermost, routes innermost.
func (p PivotedReport) Row(id string) []string {
	out := make([]string, 0, len(PivotFields)*len(p.Routes))
	for _, field := range PivotFields {
		for _, route := range p.Routes {
			out = append(out, p.Cell(id, field, route))
		}
	}
	return out
}

// Flatten returns one reconciled record per occupied (identifier, route)
// group, restricted to the pivot columns. Empty cells come back as Missing.
func (p PivotedReport) Flatten() ReconciledTable {
	out := ReconciledTable{SourceHeader: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived}}
	for _, id := range p.Identifiers {
		for _, route := range p.Routes {
			if !p.Occupied(id, route) {
				continue
			}
			out.Records = append(out.Records, ReconciledRecord{
				TrackingRecord: TrackingRecord{
					Identifier:   id,
					From:         Text(route.From),
					To:           Text(route.To),
					DateReceived: cellValue(p.Cell(id, ColDateReceived, route)),
				},
				DateRunBroad: cellValue(p.Cell(id, ColDateRunBroad, route)),
				DateRunViva:  cellValue(p.Cell(id, ColDateRunViva, route)),
			})
		}
	}
	return out
}

func cellValue(s string) Value {
	if s == "" {
		return Missing
	}
	return Text(s)
}
