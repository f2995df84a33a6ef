// Package results queries assay run records from the results database.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trackrecon/internal/recon"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Columns names the columns selected from the result table. Weight is optional.
type Columns struct {
	Identifier  string
	ProjectCode string
	Operator    string
	ProteinID   string
	Weight      string
	Date        string
}

// Config holds construction parameters for Store.
type Config struct {
	Dialect     Dialect
	Endpoint    Endpoint
	Table       string
	Columns     Columns
	ProjectCode string
	ProteinID   string
}

// Store fetches in-scope assay results. Each Fetch opens a connection, runs a
// single query and closes it.
type Store struct {
	cfg     Config
	secrets SecretResolver
	log     *zap.Logger
}

// NewStore constructs a results store. A nil logger discards output.
func NewStore(cfg Config, secrets SecretResolver, log *zap.Logger) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("results table required")
	}
	if secrets == nil {
		secrets = NoSecret{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cfg: cfg, secrets: secrets, log: log}, nil
}

// Query returns the SQL text and arguments Fetch executes.
func (s *Store) Query() (string, []any) {
	c := s.cfg.Columns
	cols := []string{c.Identifier, c.ProjectCode, c.Operator, c.ProteinID}
	if c.Weight != "" {
		cols = append(cols, c.Weight)
	}
	cols = append(cols, c.Date)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(cols, ", "), s.cfg.Table, c.ProjectCode, s.cfg.Dialect.Placeholder(1))
	return q, []any{projectCodeArg(s.cfg.ProjectCode)}
}

// projectCodeArg binds numeric project codes as integers so numeric columns
// compare without an implicit cast.
func projectCodeArg(code string) any {
	if n, err := strconv.ParseInt(code, 10, 64); err == nil {
		return n
	}
	return code
}

// Fetch connects, queries the configured project, and keeps the rows whose
// protein id matches. Connection failures are returned as *ConnectionError.
func (s *Store) Fetch(ctx context.Context) ([]recon.AssayResult, error) {
	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	q, args := s.Query()
	s.log.Debug("querying results", zap.String("query", q))
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.cfg.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []recon.AssayResult
	withWeight := s.cfg.Columns.Weight != ""
	for rows.Next() {
		var (
			id, project, operator, protein, date sql.NullString
			weight                               sql.NullFloat64
		)
		dest := []any{&id, &project, &operator, &protein}
		if withWeight {
			dest = append(dest, &weight)
		}
		dest = append(dest, &date)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.cfg.Table, err)
		}
		out = append(out, recon.AssayResult{
			Identifier:  id.String,
			ProjectCode: project.String,
			Operator:    operator.String,
			ProteinID:   protein.String,
			Weight:      weight.Float64,
			HasWeight:   weight.Valid,
			Date:        date.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.cfg.Table, err)
	}
	scoped := recon.ForProtein(out, s.cfg.ProteinID)
	s.log.Info("downloaded results",
		zap.Int("rows", len(out)),
		zap.Int("in_scope", len(scoped)),
		zap.String("protein_id", s.cfg.ProteinID))
	return scoped, nil
}

func (s *Store) connect(ctx context.Context) (*sql.DB, error) {
	creds, err := s.secrets.Resolve(ctx)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("resolve credentials: %w", err)}
	}
	s.log.Info("Making a connection attempt to resultsdb...", zap.String("dialect", string(s.cfg.Dialect)))
	openMu.Lock()
	db, err := sqlOpen(s.cfg.Dialect.DriverName(), s.cfg.Dialect.DSN(s.cfg.Endpoint, creds))
	openMu.Unlock()
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("open %s: %w", s.cfg.Dialect, err)}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Err: fmt.Errorf("ping %s: %w", s.cfg.Dialect, err)}
	}
	s.log.Info("Connection successful, proceeding...")
	return db, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
