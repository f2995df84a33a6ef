// Package pipeline runs one reconciliation: load tracking, fetch assay
// results, merge, pivot, derive the worklist, persist the workbook and
// optionally push the worklist back to Google Sheets.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trackrecon/internal/observability"
	"trackrecon/internal/recon"
	"trackrecon/internal/report"
	"trackrecon/internal/results"
)

// TrackingSource loads the tracking table.
type TrackingSource interface {
	Load(ctx context.Context) (recon.TrackingTable, error)
}

// ResultsSource fetches the in-scope assay results.
type ResultsSource interface {
	Fetch(ctx context.Context) ([]recon.AssayResult, error)
}

// ReportWriter persists the workbook.
type ReportWriter interface {
	Save(ctx context.Context, name string, wb report.Workbook, run report.RunInfo) (report.Saved, error)
}

// WorklistWriter publishes the worklist rows to a sheet tab.
type WorklistWriter interface {
	WriteWorklist(ctx context.Context, tab string, header []string, rows [][]string) error
}

// RowRecorder receives table sizes; *observability.Metrics implements it.
type RowRecorder interface {
	SetRows(table string, n int)
}

// Options are the run constants.
type Options struct {
	Merge          recon.MergeOptions
	PrimarySite    string
	ThirdPartySite string
	Version        string
	WorklistTab    string
	// Mode labels the tracking source ("file" or "sheets") in run metadata.
	Mode string
}

// Pipeline wires the sources and sinks of a run. Worklist may be nil, in
// which case no push happens.
type Pipeline struct {
	Tracking TrackingSource
	Results  ResultsSource
	Report   ReportWriter
	Worklist WorklistWriter
	Options  Options

	Log     *zap.Logger
	Metrics observability.MetricsRecorder
	Tracer  observability.Tracer

	newID func() string
}

// Request is one invocation.
type Request struct {
	// SaveFile is the user's base name for the workbook.
	SaveFile     string
	PushWorklist bool
}

// Result summarises a successful run.
type Result struct {
	RunID    string
	FileName string
	Saved    report.Saved
	Pushed   bool
	Workbook report.Workbook
}

// Run executes the stages in order. The first failure ends the run; nothing
// after it is written.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	p.defaults()
	runID := p.newID()
	ctx = observability.WithRunID(ctx, runID)
	log := p.Log.With(zap.String("run_id", runID))
	res := Result{RunID: runID, FileName: report.FileName(req.SaveFile, p.Options.Version)}

	var tracking recon.TrackingTable
	err := p.stage(ctx, StageTracking, func(ctx context.Context) error {
		t, err := p.Tracking.Load(ctx)
		if err != nil {
			return err
		}
		tracking = recon.NormalizeTracking(t)
		return nil
	})
	if err != nil {
		return Result{}, p.fail(log, StageTracking, MsgTracking, err)
	}
	log.Info("loaded tracking records", zap.Int("records", len(tracking.Records)))

	var assays []recon.AssayResult
	err = p.stage(ctx, StageResults, func(ctx context.Context) error {
		log.Info("Making a connection attempt to resultsdb...")
		r, err := p.Results.Fetch(ctx)
		if err != nil {
			return err
		}
		assays = recon.NormalizeResults(r)
		return nil
	})
	if err != nil {
		var connErr *results.ConnectionError
		if errors.As(err, &connErr) {
			log.Error("results database unreachable", zap.Error(connErr.Err))
			return Result{}, connErr
		}
		return Result{}, p.fail(log, StageResults, MsgResults, err)
	}
	log.Info("fetched assay results", zap.Int("results", len(assays)))

	var wb report.Workbook
	p.compute(ctx, StageMerge, func() {
		wb.Updated = recon.Merge(tracking, assays, p.Options.Merge)
	})
	p.compute(ctx, StagePivot, func() {
		wb.Pivoted = recon.Pivot(wb.Updated)
	})
	p.compute(ctx, StageWorklist, func() {
		wb.Worklist = recon.BuildNoDataWorklist(wb.Updated, p.Options.PrimarySite, p.Options.ThirdPartySite)
	})
	p.recordRows(wb)
	res.Workbook = wb
	log.Info("reconciled",
		zap.Int("updated_rows", len(wb.Updated.Records)),
		zap.Int("pivot_rows", len(wb.Pivoted.Identifiers)),
		zap.Int("worklist_rows", wb.Worklist.Len()))

	err = p.stage(ctx, StagePersist, func(ctx context.Context) error {
		saved, err := p.Report.Save(ctx, res.FileName, wb, report.RunInfo{RunID: runID, Version: p.Options.Version, Mode: p.Options.Mode})
		res.Saved = saved
		return err
	})
	if err != nil {
		return Result{}, p.fail(log, StagePersist, MsgPersist, err)
	}

	if req.PushWorklist && p.Worklist != nil {
		err = p.stage(ctx, StagePush, func(ctx context.Context) error {
			return p.Worklist.WriteWorklist(ctx, p.Options.WorklistTab, wb.Worklist.Header(), report.WorklistRows(wb.Worklist, false))
		})
		if err != nil {
			return Result{}, p.fail(log, StagePush, MsgPush, err)
		}
		res.Pushed = true
	}
	log.Info("run complete", zap.String("key", res.Saved.Key), zap.Bool("worklist_pushed", res.Pushed))
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := p.Tracer.Start(ctx, name)
	err := fn(ctx)
	span.End(err)
	p.Metrics.Observe(ctx, name, err == nil, time.Since(start))
	p.Log.Debug("stage finished", zap.String("stage", name), zap.Duration("took", time.Since(start)), zap.Error(err))
	return err
}

// compute records a stage around in-memory work that cannot fail.
func (p *Pipeline) compute(ctx context.Context, name string, fn func()) {
	start := time.Now()
	_, span := p.Tracer.Start(ctx, name)
	fn()
	span.End(nil)
	p.Metrics.Observe(ctx, name, true, time.Since(start))
	p.Log.Debug("stage finished", zap.String("stage", name), zap.Duration("took", time.Since(start)))
}

func (p *Pipeline) fail(log *zap.Logger, stage, msg string, err error) error {
	runErr := &RunError{Stage: stage, Message: msg, Err: err}
	log.Error(msg, zap.String("stage", stage), zap.Error(err))
	return runErr
}

func (p *Pipeline) recordRows(wb report.Workbook) {
	rr, ok := p.Metrics.(RowRecorder)
	if !ok {
		return
	}
	rr.SetRows("updated", len(wb.Updated.Records))
	rr.SetRows("pivoted", len(wb.Pivoted.Identifiers))
	rr.SetRows("worklist", wb.Worklist.Len())
}

func (p *Pipeline) defaults() {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.Metrics == nil {
		p.Metrics = observability.NopMetrics{}
	}
	if p.Tracer == nil {
		p.Tracer = observability.NopTracer{}
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
}
