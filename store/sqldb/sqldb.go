/*
Package sqldb provides a database/sql implementation of asset.TxStore for
SQLite and PostgreSQL.

PURPOSE:
  Persists assets, the depreciation ledger, transfers, maintenance records
  and run audit records. The same queries serve both databases; only the
  placeholder format and the driver differ.

DIALECTS:
  sqlite:   github.com/mattn/go-sqlite3, one connection, WAL, foreign keys
  postgres: github.com/jackc/pgx/v5/stdlib

SCHEMA:
  Managed by goose from the embedded migrations/ directory. Open applies
  pending migrations; NewWithDB does not, so callers that own the schema
  (or tests with sqlmock) can skip it.

  Money columns are decimal text and timestamps are fixed-width UTC text,
  so one schema works on both databases.

CONSTRAINTS:
  idx_assets_facility_code:  asset code unique per facility (live assets)
  idx_assets_serial:         serial number unique (live assets)
  idx_ledger_asset_period:   one ledger entry per asset and period
  idx_transfers_one_pending: one pending transfer per asset

  Violations are mapped onto the asset package sentinels.

CONCURRENCY:
  SaveAsset and SaveTransfer are compare-and-swap updates (WHERE version = ?
  and WHERE status = ?). Zero affected rows means another writer won.

USAGE:
  s, err := sqldb.Open(ctx, sqldb.Config{Driver: sqldb.DialectSQLite, DSN: "./data/assets.db"}, log)
  if err != nil {
      return err
  }
  defer s.Close()
*/
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

func (d Dialect) goose() goose.Dialect {
	if d == DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

// Config selects and tunes the database.
type Config struct {
	Driver Dialect
	DSN    string

	// MaxOpenConns applies to postgres; SQLite always uses one connection.
	MaxOpenConns int
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements asset.TxStore.
type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	sb      sq.StatementBuilderType
	log     *zap.Logger
}

var _ asset.TxStore = (*Store)(nil)

// Open connects, pings and migrates. An empty SQLite DSN opens an
// in-memory database.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DialectSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		dsn = sqliteDSN(dsn)
	case DialectPostgres:
		if dsn == "" {
			return nil, errors.New("postgres requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewWithDB(db, cfg.Driver, log)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an open database without migrating it.
func NewWithDB(db *sql.DB, dialect Dialect, log *zap.Logger) *Store {
	return &Store{
		db:      db,
		q:       db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
		log:     logger.OrNop(log).Named("sqldb"),
	}
}

func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(s.dialect.goose(), s.db, fsys)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		s.log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TRANSACTIONAL STORE (asset.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Calls on a store that
// is already bound to a transaction join it.
func (s *Store) WithTx(ctx context.Context, fn func(asset.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bound := *s
	bound.q = tx
	if err := fn(&bound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return s.q.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return s.q.QueryContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return s.q.QueryRowContext(ctx, query, args...), nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
