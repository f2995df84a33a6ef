// Package config resolves the run configuration from built-in defaults, an
// optional YAML file and TRACKRECON_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Results  ResultsConfig  `yaml:"results"`
	Merge    MergeConfig    `yaml:"merge"`
	Report   ReportConfig   `yaml:"report"`
	Blob     BlobConfig     `yaml:"blob"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// TrackingConfig locates the tracking sheet and the worklist tab.
type TrackingConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	ReadRange       string `yaml:"read_range"`
	WorklistTab     string `yaml:"worklist_tab"`
	CredentialsFile string `yaml:"credentials_file"`
	// FileSheet selects the worksheet when the tracking file is an .xlsx workbook.
	FileSheet string `yaml:"file_sheet"`
}

// ResultsConfig describes the results database and the assay query.
type ResultsConfig struct {
	Dialect string `yaml:"dialect"` // oracle|postgres|sqlite
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	SID     string `yaml:"sid"`
	Service string `yaml:"service"`
	// DSN overrides host/port/sid; required for sqlite (file path).
	DSN string `yaml:"dsn"`

	UserEnv           string `yaml:"user_env"`
	PasswordEnv       string `yaml:"password_env"`
	PasswordTokenFile string `yaml:"password_token_file"`
	FernetKeyEnv      string `yaml:"fernet_key_env"`

	Table       string        `yaml:"table"`
	Columns     ResultColumns `yaml:"columns"`
	ProjectCode string        `yaml:"project_code"`
	ProteinID   string        `yaml:"protein_id"`
}

// ResultColumns names the result table columns. Weight is optional.
type ResultColumns struct {
	Identifier  string `yaml:"identifier"`
	ProjectCode string `yaml:"project_code"`
	Operator    string `yaml:"operator"`
	ProteinID   string `yaml:"protein_id"`
	Weight      string `yaml:"weight"`
	Date        string `yaml:"date"`
}

// MergeConfig holds the operator routing constants.
type MergeConfig struct {
	ThirdPartyOperator string `yaml:"third_party_operator"`
	PrimarySite        string `yaml:"primary_site"`
	ThirdPartySite     string `yaml:"third_party_site"`
	JoinPolicy         string `yaml:"join_policy"`
}

// ReportConfig controls workbook naming and placement.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	MetaDir   string `yaml:"meta_dir"` // fs driver sidecars
	Version   string `yaml:"version"`
}

// BlobConfig selects where the workbook is stored.
type BlobConfig struct {
	Driver string   `yaml:"driver"` // fs|s3|memory
	Prefix string   `yaml:"prefix"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the s3 blob driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// MetricsConfig controls run metric and trace export. Empty values disable the exporter.
type MetricsConfig struct {
	TextfilePath   string `yaml:"textfile_path"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
	TracePath      string `yaml:"trace_path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json|console
}

// Default returns the configuration the lab runs with when nothing is overridden.
func Default() Config {
	return Config{
		Tracking: TrackingConfig{
			SpreadsheetID:   "1XnC6bZ_iVB7KttuSGa2h8ZlUZx-VsTspwgPOTOxIbeA",
			ReadRange:       "Tracking!A:J",
			WorklistTab:     "Compounds Received but Not Tested",
			CredentialsFile: "TrackCompounds-1306f02bc0b1.json",
		},
		Results: ResultsConfig{
			Dialect:     "oracle",
			Port:        1521,
			UserEnv:     "DB_USER",
			PasswordEnv: "DB_PASSWORD",
			Table:       "upload_spr_dose",
			Columns: ResultColumns{
				Identifier:  "broad_id",
				ProjectCode: "project_code",
				Operator:    "operator",
				ProteinID:   "protein_id",
				Date:        "date_",
			},
			ProjectCode: "7279",
			ProteinID:   "BIP-0384-01",
		},
		Merge: MergeConfig{
			ThirdPartyOperator: "Viva_Biotech",
			PrimarySite:        "Broad",
			ThirdPartySite:     "Viva",
			JoinPolicy:         "fanout",
		},
		Report: ReportConfig{Version: "1.0.0"},
		Blob:   BlobConfig{Driver: "fs"},
		Metrics: MetricsConfig{
			Job: "trackrecon",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// non-empty, then environment overrides, then the output directory default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if cfg.Report.OutputDir == "" {
		dir, err := DefaultOutputDir(os.UserHomeDir)
		if err != nil {
			return Config{}, err
		}
		cfg.Report.OutputDir = dir
	}
	if cfg.Report.MetaDir == "" {
		cfg.Report.MetaDir = DefaultMetaDir(os.UserCacheDir, cfg.Report.OutputDir)
	}
	return cfg, nil
}

// DefaultMetaDir places blob sidecars in the user cache directory, falling
// back to a hidden directory inside the output directory.
func DefaultMetaDir(cache func() (string, error), outputDir string) string {
	if dir, err := cache(); err == nil && dir != "" {
		return filepath.Join(dir, "trackrecon", "blob-meta")
	}
	return filepath.Join(outputDir, ".meta")
}

// DefaultOutputDir resolves the user's Desktop directory.
func DefaultOutputDir(home func() (string, error)) (string, error) {
	h, err := home()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(h, "Desktop"), nil
}

// Validate reports configuration that cannot produce a run. remote reports
// whether the tracking sheet is read from Google Sheets.
func (c Config) Validate(remote bool) error {
	var errs []error
	if remote {
		if c.Tracking.SpreadsheetID == "" {
			errs = append(errs, errors.New("tracking.spreadsheet_id required"))
		}
		if c.Tracking.ReadRange == "" {
			errs = append(errs, errors.New("tracking.read_range required"))
		}
	}
	switch c.Results.Dialect {
	case "oracle":
		if c.Results.DSN == "" && c.Results.Host == "" {
			errs = append(errs, errors.New("results.host or results.dsn required for oracle"))
		}
	case "postgres":
		if c.Results.DSN == "" && c.Results.Host == "" {
			errs = append(errs, errors.New("results.host or results.dsn required for postgres"))
		}
	case "sqlite":
		if c.Results.DSN == "" {
			errs = append(errs, errors.New("results.dsn required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown results dialect %q", c.Results.Dialect))
	}
	if c.Results.Table == "" {
		errs = append(errs, errors.New("results.table required"))
	}
	if c.Merge.PrimarySite == "" || c.Merge.ThirdPartySite == "" {
		errs = append(errs, errors.New("merge.primary_site and merge.third_party_site required"))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("blob.s3.bucket required for s3 driver"))
	}
	return errors.Join(errs...)
}

// Environment variables:
//
//	TRACKRECON_SPREADSHEET_ID, TRACKRECON_READ_RANGE, TRACKRECON_WORKLIST_TAB,
//	TRACKRECON_SHEETS_CREDENTIALS
//	TRACKRECON_DB_DIALECT, TRACKRECON_DB_HOST, TRACKRECON_DB_PORT, TRACKRECON_DB_SID,
//	TRACKRECON_DB_SERVICE, TRACKRECON_DB_DSN, TRACKRECON_DB_TOKEN_FILE
//	TRACKRECON_PROJECT_CODE, TRACKRECON_PROTEIN_ID, TRACKRECON_JOIN_POLICY
//	TRACKRECON_OUTPUT_DIR, TRACKRECON_APP_VERSION
//	TRACKRECON_BLOB_DRIVER, TRACKRECON_BLOB_PREFIX, TRACKRECON_BLOB_S3_BUCKET,
//	TRACKRECON_BLOB_S3_REGION, TRACKRECON_BLOB_S3_ENDPOINT, TRACKRECON_BLOB_S3_PATH_STYLE
//	TRACKRECON_METRICS_TEXTFILE, TRACKRECON_PUSHGATEWAY_URL, TRACKRECON_TRACE_FILE
//	TRACKRECON_LOG_LEVEL, TRACKRECON_LOG_FORMAT
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"TRACKRECON_SPREADSHEET_ID":     &cfg.Tracking.SpreadsheetID,
		"TRACKRECON_READ_RANGE":         &cfg.Tracking.ReadRange,
		"TRACKRECON_WORKLIST_TAB":       &cfg.Tracking.WorklistTab,
		"TRACKRECON_SHEETS_CREDENTIALS": &cfg.Tracking.CredentialsFile,
		"TRACKRECON_DB_DIALECT":         &cfg.Results.Dialect,
		"TRACKRECON_DB_HOST":            &cfg.Results.Host,
		"TRACKRECON_DB_SID":             &cfg.Results.SID,
		"TRACKRECON_DB_SERVICE":         &cfg.Results.Service,
		"TRACKRECON_DB_DSN":             &cfg.Results.DSN,
		"TRACKRECON_DB_TOKEN_FILE":      &cfg.Results.PasswordTokenFile,
		"TRACKRECON_PROJECT_CODE":       &cfg.Results.ProjectCode,
		"TRACKRECON_PROTEIN_ID":         &cfg.Results.ProteinID,
		"TRACKRECON_JOIN_POLICY":        &cfg.Merge.JoinPolicy,
		"TRACKRECON_OUTPUT_DIR":         &cfg.Report.OutputDir,
		"TRACKRECON_META_DIR":           &cfg.Report.MetaDir,
		"TRACKRECON_APP_VERSION":        &cfg.Report.Version,
		"TRACKRECON_BLOB_DRIVER":        &cfg.Blob.Driver,
		"TRACKRECON_BLOB_PREFIX":        &cfg.Blob.Prefix,
		"TRACKRECON_BLOB_S3_BUCKET":     &cfg.Blob.S3.Bucket,
		"TRACKRECON_BLOB_S3_REGION":     &cfg.Blob.S3.Region,
		"TRACKRECON_BLOB_S3_ENDPOINT":   &cfg.Blob.S3.Endpoint,
		"TRACKRECON_METRICS_TEXTFILE":   &cfg.Metrics.TextfilePath,
		"TRACKRECON_PUSHGATEWAY_URL":    &cfg.Metrics.PushgatewayURL,
		"TRACKRECON_TRACE_FILE":         &cfg.Metrics.TracePath,
		"TRACKRECON_LOG_LEVEL":          &cfg.Log.Level,
		"TRACKRECON_LOG_FORMAT":         &cfg.Log.Format,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("TRACKRECON_DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRACKRECON_DB_PORT: %w", err)
		}
		cfg.Results.Port = port
	}
	if v, ok := lookup("TRACKRECON_BLOB_S3_PATH_STYLE"); ok && v != "" {
		cfg.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	return nil
}
