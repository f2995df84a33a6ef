package recon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func reconciled(recs ...ReconciledRecord) ReconciledTable {
	return ReconciledTable{SourceHeader: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived}, Records: recs}
}

func rrec(id, from, to string, received, broad, viva Value) ReconciledRecord {
	return ReconciledRecord{
		TrackingRecord: TrackingRecord{Identifier: id, From: Text(from), To: Text(to), DateReceived: received},
		DateRunBroad:   broad,
		DateRunViva:    viva,
	}
}

func TestPivotJoinsCollidingCellsWithSpace(t *testing.T) {
	table := reconciled(
		rrec(idA, "Enamine", "Broad", Text("2021-01-05"), Text("2021-02-01"), Missing),
		rrec(idA, "Enamine", "Broad", Text("2021-01-05"), Text("2021-03-01"), Missing),
		rrec(idA, "Broad", "Viva", Missing, Missing, Text("2021-04-01")),
		rrec(idB, "Enamine", "Broad", Text("2021-01-07"), Missing, Missing),
	)
	p := Pivot(table)

	if diff := cmp.Diff([]string{idA, idB}, p.Identifiers); diff != "" {
		t.Fatalf("identifiers (-want +got):\n%s", diff)
	}
	wantRoutes := []Route{{From: "Broad", To: "Viva"}, {From: "Enamine", To: "Broad"}}
	if diff := cmp.Diff(wantRoutes, p.Routes); diff != "" {
		t.Fatalf("routes (-want +got):\n%s", diff)
	}
	enBroad := Route{From: "Enamine", To: "Broad"}
	if got := p.Cell(idA, ColDateRunBroad, enBroad); got != "2021-02-01 2021-03-01" {
		t.Fatalf("joined run dates = %q", got)
	}
	if got := p.Cell(idA, ColDateReceived, enBroad); got != "2021-01-05 2021-01-05" {
		t.Fatalf("joined received dates = %q", got)
	}
	if got := p.Cell(idA, ColDateRunViva, enBroad); got != " " {
		t.Fatalf("two missing cells should join to a single space, got %q", got)
	}
	if got := p.Cell(idB, ColDateRunViva, Route{From: "Broad", To: "Viva"}); got != "" {
		t.Fatalf("absent group should render empty, got %q", got)
	}
	row := p.Row(idA)
	if len(row) != len(PivotFields)*len(p.Routes) {
		t.Fatalf("row width %d", len(row))
	}
	if row[len(p.Routes)*2] != "2021-04-01" {
		t.Fatalf("expected DATE_RUN_VIVA for Broad->Viva first in its block, got %q", row)
	}
}

func TestPivotDoesNotStripNanSubstrings(t *testing.T) {
	table := reconciled(rrec("BRD-Knan0000-000-00-0", "Nanjing", "Broad", Text("nan"), Missing, Missing))
	p := Pivot(table)
	route := Route{From: "Nanjing", To: "Broad"}
	if !p.Occupied("BRD-Knan0000-000-00-0", route) {
		t.Fatalf("expected Nanjing route to be kept verbatim, routes %+v", p.Routes)
	}
	if got := p.Cell("BRD-Knan0000-000-00-0", ColDateReceived, route); got != "nan" {
		t.Fatalf("literal text should survive, got %q", got)
	}
}

func TestPivotSkipsRecordsWithoutRoute(t *testing.T) {
	rec := rrec(idC, "Enamine", "Broad", Text("2021-01-01"), Missing, Missing)
	rec.To = Missing
	p := Pivot(reconciled(rec))
	if len(p.Identifiers) != 0 || len(p.Routes) != 0 {
		t.Fatalf("expected empty pivot, got %+v", p)
	}
}

func TestPivotIsIdempotentOnUniqueIdentifiers(t *testing.T) {
	table := reconciled(
		rrec(idA, "Enamine", "Broad", Text("2021-01-05"), Text("2021-02-01"), Missing),
		rrec(idA, "Enamine", "Broad", Text("2021-01-05"), Text("2021-03-01"), Missing),
		rrec(idB, "Enamine", "Viva", Text("2021-01-07"), Missing, Text("2021-01-09")),
		rrec(idC, "Broad", "Viva", Missing, Missing, Missing),
	)
	first := Pivot(table)
	second := Pivot(first.Flatten())

	if diff := cmp.Diff(first.Identifiers, second.Identifiers); diff != "" {
		t.Fatalf("identifiers changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Routes, second.Routes); diff != "" {
		t.Fatalf("routes changed (-first +second):\n%s", diff)
	}
	for _, id := range first.Identifiers {
		if diff := cmp.Diff(first.Row(id), second.Row(id)); diff != "" {
			t.Fatalf("row %s changed (-first +second):\n%s", id, diff)
		}
	}
}
