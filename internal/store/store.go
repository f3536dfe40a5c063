package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/franz/sparkify-etl/internal/util"
)

// Store is the persistence gateway for the star schema
type Store struct {
	db     *sql.DB
	schema *Schema
}

// Config holds everything needed to open a Store
type Config struct {
	Schema *Schema

	// Path is the SQLite database file (DialectSQLite only)
	Path string

	// Postgres holds connection parameters (DialectPostgres only)
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// ConnString builds a postgres:// URL from the connection parameters
func (c PostgresConfig) ConnString() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// sqlitePragmas are applied to every SQLite connection through the DSN
func sqlitePragmas(strict bool) []string {
	pragmas := []string{
		"busy_timeout(5000)",
		"journal_mode(WAL)",
		// NORMAL is safe with WAL; a commit per file would otherwise fsync each time
		"synchronous(NORMAL)",
	}
	if strict {
		pragmas = append(pragmas, "foreign_keys(1)")
	}
	return pragmas
}

func sqliteDSN(path string, strict bool) string {
	params := make([]string, 0, 4)
	for _, p := range sqlitePragmas(strict) {
		params = append(params, "_pragma="+url.QueryEscape(p))
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}

// Open connects to the database described by cfg and creates any missing tables
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema is required: %w", util.ErrInvalidConfig)
	}

	var (
		driver string
		dsn    string
	)
	switch cfg.Schema.Dialect {
	case DialectSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite database path is required: %w", util.ErrInvalidConfig)
		}
		driver, dsn = "sqlite", sqliteDSN(cfg.Path, cfg.Schema.Strict)
	case DialectPostgres:
		if cfg.Postgres.Database == "" {
			return nil, fmt.Errorf("postgres database name is required: %w", util.ErrInvalidConfig)
		}
		driver, dsn = "pgx", cfg.Postgres.ConnString()
	default:
		return nil, fmt.Errorf("dialect %q: %w", cfg.Schema.Dialect, util.ErrUnsupported)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The run holds one connection for its lifetime
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, schema: cfg.Schema}
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Schema returns the statement set the store was opened with
func (s *Store) Schema() *Schema {
	return s.schema
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateTables creates every table that does not exist yet
func (s *Store) CreateTables(ctx context.Context) error {
	return s.execAll(ctx, "create", s.schema.Create)
}

// Reset drops every table and creates them again
func (s *Store) Reset(ctx context.Context) error {
	if err := s.execAll(ctx, "drop", s.schema.Drop); err != nil {
		return err
	}
	return s.CreateTables(ctx)
}

func (s *Store) execAll(ctx context.Context, what string, stmts []string) error {
	return s.Transaction(ctx, func(tx *Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to %s tables: %w", what, err)
			}
		}
		return nil
	})
}

// SQLiteVersion returns the embedded SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// ServerVersion returns the version reported by the connected database
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	query := "SELECT sqlite_version()"
	if s.schema.Dialect == DialectPostgres {
		query = "SHOW server_version"
	}

	var version string
	if err := s.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return "", fmt.Errorf("version query failed: %w", err)
	}
	return version, nil
}

// CheckIntegrity runs SQLite's integrity check. Other dialects only ping.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	if s.schema.Dialect != DialectSQLite {
		return s.db.PingContext(ctx)
	}

	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// Tx is one unit of work against the gateway. The driver opens one per data file.
type Tx struct {
	tx     *sql.Tx
	schema *Schema
}

// Begin starts a transaction
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx, schema: s.schema}, nil
}

// Commit makes the transaction's writes durable
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// Transaction executes a function within a transaction
func (s *Store) Transaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
