package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"trackrecon/internal/blob"
	"trackrecon/internal/observability"
	"trackrecon/internal/recon"
	"trackrecon/internal/report"
	"trackrecon/internal/results"
)

type fakeTracking struct {
	table recon.TrackingTable
	err   error
}

func (f fakeTracking) Load(context.Context) (recon.TrackingTable, error) { return f.table, f.err }

type fakeResults struct {
	rows []recon.AssayResult
	err  error
}

func (f fakeResults) Fetch(context.Context) ([]recon.AssayResult, error) { return f.rows, f.err }

type fakeWorklist struct {
	calls  int
	tab    string
	header []string
	rows   [][]string
	err    error
}

func (f *fakeWorklist) WriteWorklist(_ context.Context, tab string, header []string, rows [][]string) error {
	f.calls++
	f.tab, f.header, f.rows = tab, header, rows
	return f.err
}

type failingReport struct{}

func (failingReport) Save(context.Context, string, report.Workbook, report.RunInfo) (report.Saved, error) {
	return report.Saved{}, errors.New("disk full")
}

func trackingTable() recon.TrackingTable {
	return recon.TrackingTable{
		Header: []string{recon.ColIdentifier, recon.ColFrom, recon.ColTo, recon.ColDateReceived},
		Records: []recon.TrackingRecord{
			// received at Broad, never assayed anywhere
			{Identifier: "BRD-K00080713-014-01-9-001-01", From: recon.Text("Enamine"), To: recon.Text("Broad"), DateReceived: recon.Text("2021-01-05")},
			// shipped on to Viva and run there
			{Identifier: "BRD-K11111111-001-01-1-002", From: recon.Text("Broad"), To: recon.Text("Viva"), DateReceived: recon.Text("2021-01-09")},
			// other destination never enters the worklist
			{Identifier: "BRD-K33333333-003-03-3", From: recon.Text("Broad"), To: recon.Text("WuXi"), DateReceived: recon.Text("2021-01-10")},
			// not yet received
			{Identifier: "BRD-K44444444-004-04-4", From: recon.Text("Broad"), To: recon.Text("Viva"), DateReceived: recon.Missing},
		},
	}
}

func assayRows() []recon.AssayResult {
	return []recon.AssayResult{
		{Identifier: "BRD-K11111111-001-01-1", Operator: "Viva_Biotech", Date: "2021_02_01"},
		{Identifier: "BRD-K22222222-002-02-2", Operator: "jdoe", Date: "2021_02_03"},
	}
}

func newPipeline(t *testing.T, store blob.Store, wl WorklistWriter) (*Pipeline, *observability.Metrics, *observability.JSONTracer) {
	t.Helper()
	m := observability.NewMetrics()
	tr := observability.NewJSONTracer(nil)
	p := &Pipeline{
		Tracking: fakeTracking{table: trackingTable()},
		Results:  fakeResults{rows: assayRows()},
		Report:   report.NewSink(store, "", nil),
		Worklist: wl,
		Options: Options{
			Merge:          recon.MergeOptions{ThirdPartyOperator: "Viva_Biotech", Policy: recon.JoinFanOut},
			PrimarySite:    "Broad",
			ThirdPartySite: "Viva",
			Version:        "1.0.0",
			WorklistTab:    "Compounds Received but Not Tested",
			Mode:           "sheets",
		},
		Metrics: m,
		Tracer:  tr,
		newID:   func() string { return "run-1" },
	}
	return p, m, tr
}

func TestRunEndToEnd(t *testing.T) {
	store := blob.NewMemory()
	wl := &fakeWorklist{}
	p, m, tr := newPipeline(t, store, wl)

	res, err := p.Run(context.Background(), Request{SaveFile: "Tracking.xlsx", PushWorklist: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "run-1" || res.FileName != "Tracking_APPVersion_1_0_0.xlsx" || !res.Pushed {
		t.Fatalf("unexpected result %+v", res)
	}

	info, err := store.Head(context.Background(), "Tracking_APPVersion_1_0_0.xlsx")
	if err != nil {
		t.Fatalf("workbook not stored: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"run_id": "run-1", "version": "1.0.0", "mode": "sheets"}, info.Metadata); diff != "" {
		t.Fatalf("metadata (-want +got):\n%s", diff)
	}

	for _, rec := range res.Workbook.Updated.Records {
		if len(rec.Identifier) != recon.IdentifierLength {
			t.Fatalf("identifier %q not normalized", rec.Identifier)
		}
	}
	dateRe := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	for _, rec := range res.Workbook.Updated.Records {
		if rec.DateRunViva.Valid && !dateRe.MatchString(rec.DateRunViva.S) {
			t.Fatalf("run date %q not normalized", rec.DateRunViva.S)
		}
	}

	if wl.calls != 1 || wl.tab != "Compounds Received but Not Tested" {
		t.Fatalf("worklist push %+v", wl)
	}
	if diff := cmp.Diff([]string{"Broad", "Viva"}, wl.header); diff != "" {
		t.Fatalf("worklist header (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"BRD-K00080713-014-01-9", ""}}, wl.rows); diff != "" {
		t.Fatalf("worklist rows (-want +got):\n%s", diff)
	}

	var ops []string
	for _, e := range tr.Entries() {
		if e.RunID != "run-1" || e.Status != "success" {
			t.Fatalf("unexpected span %+v", e)
		}
		ops = append(ops, e.Operation)
	}
	wantOps := []string{StageTracking, StageResults, StageMerge, StagePivot, StageWorklist, StagePersist, StagePush}
	if diff := cmp.Diff(wantOps, ops); diff != "" {
		t.Fatalf("stage order (-want +got):\n%s", diff)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "trackrecon_table_rows"); err != nil || n != 3 {
		t.Fatalf("table_rows series = %d %v", n, err)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "trackrecon_stage_results_total"); err != nil || n != len(wantOps) {
		t.Fatalf("every stage should record one success series, got %d %v", n, err)
	}
}

func TestRunSkipsPushWhenDisabledOrNoWriter(t *testing.T) {
	wl := &fakeWorklist{}
	p, _, _ := newPipeline(t, blob.NewMemory(), wl)
	res, err := p.Run(context.Background(), Request{SaveFile: "x", PushWorklist: false})
	if err != nil || res.Pushed || wl.calls != 0 {
		t.Fatalf("push should be skipped: %+v %v calls=%d", res, err, wl.calls)
	}
	p, _, _ = newPipeline(t, blob.NewMemory(), nil)
	res, err = p.Run(context.Background(), Request{SaveFile: "x", PushWorklist: true})
	if err != nil || res.Pushed {
		t.Fatalf("file mode should not push: %+v %v", res, err)
	}
}

func TestRunTrackingFailure(t *testing.T) {
	store := blob.NewMemory()
	p, m, _ := newPipeline(t, store, nil)
	p.Tracking = fakeTracking{err: errors.New("403 from sheets")}
	_, err := p.Run(context.Background(), Request{SaveFile: "x"})
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StageTracking || err.Error() != MsgTracking {
		t.Fatalf("expected tracking RunError, got %v", err)
	}
	if !strings.Contains(runErr.Detail(), "403 from sheets") {
		t.Fatalf("detail lost cause: %s", runErr.Detail())
	}
	if list, _ := store.List(context.Background(), ""); len(list) != 0 {
		t.Fatalf("nothing should be written, got %+v", list)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "trackrecon_stage_results_total"); err != nil || n != 1 {
		t.Fatalf("stage result series = %d %v", n, err)
	}
}

func TestRunConnectionErrorSurfacesUnchanged(t *testing.T) {
	p, _, _ := newPipeline(t, blob.NewMemory(), nil)
	p.Results = fakeResults{err: &results.ConnectionError{Err: errors.New("ORA-12541")}}
	_, err := p.Run(context.Background(), Request{SaveFile: "x"})
	var connErr *results.ConnectionError
	if !errors.As(err, &connErr) || err.Error() != results.ConnectionHint {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		t.Fatalf("connection error must not be wrapped in RunError")
	}
}

func TestRunResultsQueryFailure(t *testing.T) {
	p, _, _ := newPipeline(t, blob.NewMemory(), nil)
	p.Results = fakeResults{err: errors.New("ORA-00942: table or view does not exist")}
	_, err := p.Run(context.Background(), Request{SaveFile: "x"})
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StageResults || err.Error() != MsgResults {
		t.Fatalf("expected results RunError, got %v", err)
	}
}

func TestRunPersistFailureSkipsPush(t *testing.T) {
	wl := &fakeWorklist{}
	p, _, _ := newPipeline(t, blob.NewMemory(), wl)
	p.Report = failingReport{}
	_, err := p.Run(context.Background(), Request{SaveFile: "x", PushWorklist: true})
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StagePersist || err.Error() != MsgPersist {
		t.Fatalf("expected persist RunError, got %v", err)
	}
	if wl.calls != 0 {
		t.Fatalf("push must not run after a persist failure")
	}
}

func TestRunPushFailure(t *testing.T) {
	wl := &fakeWorklist{err: errors.New("quota exceeded")}
	p, _, _ := newPipeline(t, blob.NewMemory(), wl)
	_, err := p.Run(context.Background(), Request{SaveFile: "x", PushWorklist: true})
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StagePush || err.Error() != MsgPush {
		t.Fatalf("expected push RunError, got %v", err)
	}
}

func TestRunDefaultsWithoutObservability(t *testing.T) {
	p := &Pipeline{
		Tracking: fakeTracking{table: trackingTable()},
		Results:  fakeResults{rows: assayRows()},
		Report:   report.NewSink(blob.NewMemory(), "", nil),
		Options:  Options{Merge: recon.MergeOptions{ThirdPartyOperator: "Viva_Biotech"}, PrimarySite: "Broad", ThirdPartySite: "Viva", Version: "1"},
	}
	res, err := p.Run(context.Background(), Request{SaveFile: "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.RunID) != 36 {
		t.Fatalf("expected uuid run id, got %q", res.RunID)
	}
}
