package results

import (
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	go_ora "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Dialect identifies a supported results database.
type Dialect string

const (
	DialectOracle   Dialect = "oracle"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect validates a configured dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(s); d {
	case DialectOracle, DialectPostgres, DialectSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unknown results dialect %q", s)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectOracle:
		return "oracle"
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

// Placeholder returns the bind marker for the nth (1-based) parameter.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case DialectOracle:
		return ":" + strconv.Itoa(n)
	case DialectPostgres:
		return "$" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// Endpoint locates the results database. DSN, when set, is used verbatim.
type Endpoint struct {
	Host    string
	Port    int
	SID     string
	Service string
	DSN     string
}

// DSN builds the driver connection string for the endpoint and credentials.
func (d Dialect) DSN(ep Endpoint, creds Credentials) string {
	if ep.DSN != "" {
		return ep.DSN
	}
	switch d {
	case DialectOracle:
		var opts map[string]string
		if ep.SID != "" {
			opts = map[string]string{"SID": ep.SID}
		}
		return go_ora.BuildUrl(ep.Host, ep.Port, ep.Service, creds.User, creds.Password, opts)
	case DialectPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(creds.User, creds.Password),
			Host:   ep.Host,
			Path:   "/" + ep.Service,
		}
		if ep.Port != 0 {
			u.Host = ep.Host + ":" + strconv.Itoa(ep.Port)
		}
		return u.String()
	default:
		return ep.DSN
	}
}
