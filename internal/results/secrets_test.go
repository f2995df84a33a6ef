package results

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fernet/fernet-go"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvSecret(t *testing.T) {
	s := EnvSecret{UserVar: "DB_USER", PasswordVar: "DB_PASSWORD", lookup: envMap(map[string]string{"DB_USER": "lab", "DB_PASSWORD": "pw"})}
	creds, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds != (Credentials{User: "lab", Password: "pw"}) {
		t.Fatalf("unexpected creds %+v", creds)
	}
	s.lookup = envMap(map[string]string{"DB_USER": "lab"})
	if _, err := s.Resolve(context.Background()); err == nil {
		t.Fatalf("expected missing password error")
	}
}

func TestFernetSecretDecryptsToken(t *testing.T) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tok, err := fernet.EncryptAndSign([]byte("s3cret"), &key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, append(tok, '\n'), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	s := FernetSecret{
		UserVar:   "DB_USER",
		KeyVar:    "DB_KEY",
		TokenPath: path,
		lookup:    envMap(map[string]string{"DB_USER": "lab", "DB_KEY": key.Encode()}),
	}
	creds, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.User != "lab" || creds.Password != "s3cret" {
		t.Fatalf("unexpected creds %+v", creds)
	}

	var other fernet.Key
	if err := other.Generate(); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s.lookup = envMap(map[string]string{"DB_USER": "lab", "DB_KEY": other.Encode()})
	if _, err := s.Resolve(context.Background()); err == nil || !strings.Contains(err.Error(), "verification") {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestFernetSecretMissingKey(t *testing.T) {
	s := FernetSecret{UserVar: "DB_USER", KeyVar: "DB_KEY", lookup: envMap(map[string]string{"DB_USER": "lab"})}
	if _, err := s.Resolve(context.Background()); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestDialectDSN(t *testing.T) {
	creds := Credentials{User: "lab", Password: "p@ss"}
	pg := DialectPostgres.DSN(Endpoint{Host: "db", Port: 5432, Service: "results"}, creds)
	if pg != "postgres://lab:p%40ss@db:5432/results" {
		t.Fatalf("postgres dsn = %q", pg)
	}
	ora := DialectOracle.DSN(Endpoint{Host: "cbpdb01", Port: 1521, SID: "cbplate"}, creds)
	if !strings.HasPrefix(ora, "oracle://") || !strings.Contains(ora, "cbpdb01:1521") || !strings.Contains(strings.ToUpper(ora), "SID=CBPLATE") {
		t.Fatalf("oracle dsn = %q", ora)
	}
	if got := DialectSQLite.DSN(Endpoint{DSN: "results.db"}, creds); got != "results.db" {
		t.Fatalf("sqlite dsn = %q", got)
	}
	if _, err := ParseDialect("mssql"); err == nil {
		t.Fatalf("expected unknown dialect error")
	}
	if DialectPostgres.DriverName() != "pgx" || DialectOracle.DriverName() != "oracle" {
		t.Fatalf("unexpected driver names")
	}
}
