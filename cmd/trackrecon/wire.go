package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"trackrecon/internal/blob"
	"trackrecon/internal/config"
	"trackrecon/internal/observability"
	"trackrecon/internal/pipeline"
	"trackrecon/internal/recon"
	"trackrecon/internal/report"
	"trackrecon/internal/results"
	"trackrecon/internal/tracking"
)

// app is a wired run plus the resources to release after it.
type app struct {
	pipeline *pipeline.Pipeline
	log      *zap.Logger
	metrics  *observability.Metrics
	export   observability.ExportConfig
	closers  []func() error
}

// sheetsOptions lets tests point the Sheets client at a fake server.
var sheetsOptions = func(cfg config.Config) []option.ClientOption {
	return []option.ClientOption{option.WithCredentialsFile(cfg.Tracking.CredentialsFile)}
}

func wire(ctx context.Context, opts options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	remote := opts.file == ""
	if err := cfg.Validate(remote); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	log, err := observability.NewLogger(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, metrics: observability.NewMetrics()}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	policy, err := recon.ParseJoinPolicy(cfg.Merge.JoinPolicy)
	if err != nil {
		return nil, err
	}
	mode := "sheets"
	var (
		trackingSrc pipeline.TrackingSource
		worklist    pipeline.WorklistWriter
	)
	if remote {
		src, err := tracking.NewSheetsSource(ctx, tracking.SheetsConfig{
			SpreadsheetID: cfg.Tracking.SpreadsheetID,
			ReadRange:     cfg.Tracking.ReadRange,
		}, log.Named("sheets"), sheetsOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		trackingSrc, worklist = src, src
	} else {
		mode = "file"
		trackingSrc = tracking.FileSource{Path: opts.file, Sheet: cfg.Tracking.FileSheet, Log: log.Named("tracking")}
	}

	store, err := newResultsStore(cfg.Results, log.Named("resultsdb"))
	if err != nil {
		return nil, err
	}

	blobStore, err := blob.Open(ctx, blob.Options{
		Driver:   cfg.Blob.Driver,
		Root:     cfg.Report.OutputDir,
		MetaRoot: cfg.Report.MetaDir,
		S3: blob.S3Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			PathStyle: cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	var tracer observability.Tracer = observability.NopTracer{}
	if cfg.Metrics.TracePath != "" {
		f, err := os.OpenFile(cfg.Metrics.TracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		tracer = observability.NewJSONTracer(f)
	}
	a.export = observability.ExportConfig{
		TextfilePath:   cfg.Metrics.TextfilePath,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		Job:            cfg.Metrics.Job,
		Grouping:       map[string]string{"mode": mode},
	}

	a.pipeline = &pipeline.Pipeline{
		Tracking: trackingSrc,
		Results:  store,
		Report:   report.NewSink(blobStore, cfg.Blob.Prefix, log.Named("report")),
		Worklist: worklist,
		Options: pipeline.Options{
			Merge:          recon.MergeOptions{ThirdPartyOperator: cfg.Merge.ThirdPartyOperator, Policy: policy},
			PrimarySite:    cfg.Merge.PrimarySite,
			ThirdPartySite: cfg.Merge.ThirdPartySite,
			Version:        cfg.Report.Version,
			WorklistTab:    cfg.Tracking.WorklistTab,
			Mode:           mode,
		},
		Log:     log,
		Metrics: a.metrics,
		Tracer:  tracer,
	}
	return a, nil
}

func newResultsStore(rc config.ResultsConfig, log *zap.Logger) (*results.Store, error) {
	dialect, err := results.ParseDialect(rc.Dialect)
	if err != nil {
		return nil, err
	}
	var secrets results.SecretResolver
	switch {
	case dialect == results.DialectSQLite:
		secrets = results.NoSecret{}
	case rc.PasswordTokenFile != "":
		secrets = results.FernetSecret{UserVar: rc.UserEnv, KeyVar: rc.FernetKeyEnv, TokenPath: rc.PasswordTokenFile}
	default:
		secrets = results.EnvSecret{UserVar: rc.UserEnv, PasswordVar: rc.PasswordEnv}
	}
	return results.NewStore(results.Config{
		Dialect: dialect,
		Endpoint: results.Endpoint{
			Host:    rc.Host,
			Port:    rc.Port,
			SID:     rc.SID,
			Service: rc.Service,
			DSN:     rc.DSN,
		},
		Table: rc.Table,
		Columns: results.Columns{
			Identifier:  rc.Columns.Identifier,
			ProjectCode: rc.Columns.ProjectCode,
			Operator:    rc.Columns.Operator,
			ProteinID:   rc.Columns.ProteinID,
			Weight:      rc.Columns.Weight,
			Date:        rc.Columns.Date,
		},
		ProjectCode: rc.ProjectCode,
		ProteinID:   rc.ProteinID,
	}, secrets, log)
}

// finish records the run outcome and exports metrics. Export failures are
// logged and do not change the exit code.
func (a *app) finish(ctx context.Context, success bool) {
	a.metrics.RunFinished(success, time.Now())
	if err := a.metrics.Export(ctx, a.export); err != nil {
		a.log.Warn("metrics export failed", zap.Error(err))
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
