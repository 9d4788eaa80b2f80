// Package postgres is the durable job queue and content store, backed by
// Postgres via pgx. Job claiming uses SELECT ... FOR UPDATE SKIP LOCKED so
// multiple worker processes can poll the same table without double-claiming
// a row.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"runtime"
	"time"

	"github.com/corvid-labs/capsule/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store wraps a pgx connection pool with the job queue and content
// operations the worker and its handlers depend on.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore runs pending migrations (via a stdlib *sql.DB so goose can use
// database/sql directly) and opens a pgxpool sized off GOMAXPROCS, matching
// the ratio used for the previous generation-job store.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := migrate(cfg.DSN); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	maxConns := int32(runtime.GOMAXPROCS(0) * 4)
	if cfg.MaxOpenConns > 0 {
		maxConns = int32(cfg.MaxOpenConns)
	}
	minConns := int32(runtime.GOMAXPROCS(0))
	if cfg.MaxIdleConns > 0 {
		minConns = int32(cfg.MaxIdleConns)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleTime) * time.Second
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET TIMEZONE='UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// migrate applies embedded goose migrations using database/sql, the only
// driver surface goose understands.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
