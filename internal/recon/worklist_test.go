package recon

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNoDataWorklistScenarioBroadReceivedNoAssay(t *testing.T) {
	raw := "BRD-K00080713-014-01-9-001-01"
	tracking := TrackingTable{
		Header: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived},
		Records: []TrackingRecord{
			{Identifier: raw, From: Text("Enamine"), To: Text("Broad"), DateReceived: Text("2021-01-05")},
		},
	}
	merged := Merge(NormalizeTracking(tracking), nil, MergeOptions{ThirdPartyOperator: "Viva_Biotech"})
	w := BuildNoDataWorklist(merged, "Broad", "Viva")

	if diff := cmp.Diff([]string{"BRD-K00080713-014-01-9"}, w.Identifiers("Broad")); diff != "" {
		t.Fatalf("Broad column (-want +got):\n%s", diff)
	}
	if got := w.Identifiers("Viva"); len(got) != 0 {
		t.Fatalf("Viva column should be empty, got %v", got)
	}
	if w.Len() != 1 || w.B[0].Valid {
		t.Fatalf("expected Viva padded with missing, got %+v", w)
	}
}

func TestNoDataWorklistViaBothSites(t *testing.T) {
	tracking := TrackingTable{
		Header: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived},
		Records: []TrackingRecord{
			{Identifier: idA, From: Text("Enamine"), To: Text("Broad"), DateReceived: Text("2021-01-05")},
			{Identifier: idA, From: Text("Broad"), To: Text("Viva"), DateReceived: Text("2021-01-09")},
		},
	}
	w := BuildNoDataWorklist(Merge(tracking, nil, MergeOptions{ThirdPartyOperator: "Viva_Biotech"}), "Broad", "Viva")
	if !slices.Contains(w.Identifiers("Viva"), idA) || !slices.Contains(w.Identifiers("Broad"), idA) {
		t.Fatalf("expected identifier in both columns, got %+v", w)
	}
}

func TestNoDataWorklistExcludesAnyRecordedRun(t *testing.T) {
	tracking := TrackingTable{
		Header: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived},
		Records: []TrackingRecord{
			// run at Viva only, received at Broad: has data somewhere, excluded.
			{Identifier: idA, From: Text("Enamine"), To: Text("Broad"), DateReceived: Text("2021-01-05")},
			// received at Viva, nothing run.
			{Identifier: idB, From: Text("Enamine"), To: Text("Viva"), DateReceived: Text("2021-01-06")},
			// not received, excluded.
			{Identifier: idC, From: Text("Enamine"), To: Text("Broad"), DateReceived: Text("   ")},
			// other destination, excluded regardless.
			{Identifier: "BRD-K33333333-003-03-3", From: Text("Enamine"), To: Text("Harvard"), DateReceived: Text("2021-01-07")},
		},
	}
	results := []AssayResult{{Identifier: idA, Operator: "Viva_Biotech", Date: "2021-02-01"}}
	merged := Merge(tracking, results, MergeOptions{ThirdPartyOperator: "Viva_Biotech"})
	w := BuildNoDataWorklist(merged, "Broad", "Viva")

	want := NotRunWorklist{SiteA: "Broad", SiteB: "Viva", A: []Value{Missing}, B: []Value{Text(idB)}}
	if diff := cmp.Diff(want, w); diff != "" {
		t.Fatalf("worklist (-want +got):\n%s", diff)
	}
}

func TestNoDataWorklistPropertiesOverFanOut(t *testing.T) {
	tracking := TrackingTable{Header: []string{ColIdentifier, ColFrom, ColTo, ColDateReceived}}
	ids := []string{idA, idB, idC, "BRD-K44444444-004-04-4", "BRD-K55555555-005-05-5"}
	dests := []string{"Broad", "Viva", "Other"}
	for i, id := range ids {
		for j, to := range dests {
			received := Text("2021-01-0" + string(rune('1'+j)))
			if (i+j)%4 == 0 {
				received = Text(" ")
			}
			tracking.Records = append(tracking.Records, TrackingRecord{Identifier: id, From: Text("Vendor"), To: Text(to), DateReceived: received})
			tracking.Records = append(tracking.Records, TrackingRecord{Identifier: id, From: Text("Vendor"), To: Text(to), DateReceived: received})
		}
	}
	results := []AssayResult{
		{Identifier: idA, Operator: "Viva_Biotech", Date: "2021-02-01"},
		{Identifier: idA, Operator: "Viva_Biotech", Date: "2021-02-02"},
		{Identifier: idC, Operator: "kjones", Date: "2021-02-03"},
	}
	merged := Merge(tracking, results, MergeOptions{ThirdPartyOperator: "Viva_Biotech"})
	w := BuildNoDataWorklist(merged, "Broad", "Viva")

	if len(w.A) != len(w.B) {
		t.Fatalf("columns differ in length: %d vs %d", len(w.A), len(w.B))
	}
	for _, site := range []string{"Broad", "Viva"} {
		got := w.Identifiers(site)
		if len(got) != len(uniq(got)) {
			t.Fatalf("%s column has duplicates: %v", site, got)
		}
		for _, id := range got {
			if id == idA || id == idC {
				t.Fatalf("%s listed although it has runs", id)
			}
			if !receivedAt(merged, id, site) {
				t.Fatalf("%s listed for %s without a received date there", id, site)
			}
			for _, rec := range merged.Records {
				if rec.Identifier == id && (rec.DateRunBroad.Valid || rec.DateRunViva.Valid) {
					t.Fatalf("%s has a recorded run", id)
				}
			}
		}
	}
	for _, row := range w.Rows() {
		for _, v := range row {
			if v.Valid && v.S == "" {
				t.Fatalf("padding must be missing, not empty")
			}
		}
	}
}

func receivedAt(table ReconciledTable, id, site string) bool {
	for _, rec := range table.Records {
		if rec.Identifier == id && rec.To.S == site && rec.DateReceived.Trim().Valid {
			return true
		}
	}
	return false
}

func uniq(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
