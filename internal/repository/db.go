package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an ent SQL driver plus the pgx pool behind it, when there is one.
type DB struct {
	Driver *entsql.Driver
	pool   *pgxpool.Pool
}

// Dialect reports the ent dialect name of the connection.
func (db *DB) Dialect() string { return db.Driver.Dialect() }

// Open connects to Postgres, or to SQLite when the DSN starts with
// "sqlite:" or "file:".
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if path, ok := sqlitePath(cfg.DSN); ok {
		return openSQLite(ctx, path, logger)
	}

	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "receipts-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for Ent
	drv := entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool))
	logger.Info("successfully connected to database")
	return &DB{Driver: drv, pool: pool}, nil
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.SQLite, "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return &DB{Driver: entsql.OpenDB(dialect.SQLite, db)}, nil
}

func sqlitePath(dsn string) (string, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"), true
	case strings.HasPrefix(dsn, "file:"):
		return dsn, true
	}
	return "", false
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	logger.Info("closing database connections")
	if db.Driver != nil {
		if err := db.Driver.Close(); err != nil {
			logger.Error("failed to close ent driver", "error", err)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.Driver.DB().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

const resultsTable = "extraction_results"

// Migrate creates the result cache table if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	payload := "TEXT"
	if db.Dialect() == dialect.Postgres {
		payload = "JSONB"
	}
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	content_hash TEXT PRIMARY KEY,
	source_ref TEXT NOT NULL DEFAULT '',
	result %s NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	needs_verification BOOLEAN NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`, resultsTable, payload),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_updated_at_idx ON %s (updated_at)`, resultsTable, resultsTable),
	}
	for _, stmt := range ddl {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate %s: %w", resultsTable, err)
		}
	}
	return nil
}
