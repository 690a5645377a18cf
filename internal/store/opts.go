package store

import (
	"log/slog"
	"strings"
)

// Opts holds configuration for store construction.
type Opts struct {
	// DSN is the database connection string (Postgres URL or SQLite path).
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DSNType identifies which backend a DSN addresses.
type DSNType string

const (
	DSNTypePostgres DSNType = "postgres"
	DSNTypeSQLite   DSNType = "sqlite"
)

// DetectDSNType classifies a DSN string. Postgres DSNs use URL schemes or
// key=value form; everything else is treated as a SQLite file path.
func DetectDSNType(dsn string) DSNType {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		slog.Debug("DetectDSNType: detected Postgres DSN")
		return DSNTypePostgres
	}
	slog.Debug("DetectDSNType: defaulting to SQLite DSN", "dsn", dsn)
	return DSNTypeSQLite
}

// NewStore constructs the backend matching the DSN type. An empty DSN
// yields the in-memory store.
func NewStore(dsn string) (Store, error) {
	if dsn == "" {
		slog.Info("NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case DSNTypePostgres:
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}
