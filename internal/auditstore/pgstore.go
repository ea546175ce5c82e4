package auditstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/bpmonitor/internal/config"
)

// pgConn adapts a pgx pool. pgx.Rows already satisfies cursor.
type pgConn struct {
	pool *pgxpool.Pool
}

func (c pgConn) query(ctx context.Context, sql string, args ...any) (cursor, error) {
	return c.pool.Query(ctx, sql, args...)
}

func (c pgConn) exec(ctx context.Context, sql string) error {
	_, err := c.pool.Exec(ctx, sql)
	return err
}

func (c pgConn) ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c pgConn) close() {
	c.pool.Close()
}

// NewPostgres returns a Store backed by a PostgreSQL pool.
func NewPostgres(pool *pgxpool.Pool, opts ...Option) *Store {
	return newStore(pgConn{pool: pool}, postgresDialect, opts...)
}

// OpenPostgres connects a pgx pool sized from cfg and verifies it with a
// ping.
func OpenPostgres(ctx context.Context, cfg config.AuditStoreConfig, dsn string, opts ...Option) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: parse DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("audit store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}

	return NewPostgres(pool, opts...), nil
}
