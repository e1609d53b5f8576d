package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the log store's connection pool.
type PoolOptions struct {
	DSN string

	// MaxConns of zero keeps the pgx default.
	MaxConns    int32
	PingTimeout time.Duration
}

// DB is the workout log store backed by a pgx pool.
type DB struct {
	Pool *pgxpool.Pool
}

func poolConfig(opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
		if cfg.MinConns > cfg.MaxConns {
			cfg.MinConns = cfg.MaxConns
		}
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "liftlog"
	return cfg, nil
}

// New opens the pool and waits up to PingTimeout for the first ping.
func New(ctx context.Context, opts PoolOptions) (*DB, error) {
	cfg, err := poolConfig(opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx := ctx
	if opts.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// migrationSource turns a bare directory into a file:// source URL and
// passes URLs with a scheme through.
func migrationSource(source string) string {
	if strings.Contains(source, "://") {
		return source
	}
	return "file://" + source
}

// RunMigrations brings workout_logs and import_logs up to the latest schema.
func RunMigrations(dsn, source string) error {
	m, err := migrate.New(migrationSource(source), dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
