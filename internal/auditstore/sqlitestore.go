package auditstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/pitabwire/bpmonitor/internal/config"
)

// SQLiteDriver is the database/sql driver name for go-sqlite3 connections
// carrying the bp_lower function. Stores built with NewSQLite must use it.
const SQLiteDriver = "sqlite3_bpmonitor"

const sqliteLowerFunc = "bp_lower"

func init() {
	sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(sqliteLowerFunc, unicodeLower, true)
		},
	})
}

// unicodeLower lower-cases TEXT and BLOB values by Unicode rules. NULL
// arrives as a nil byte slice and stays NULL.
func unicodeLower(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case []byte:
		if x == nil {
			return nil
		}
		return strings.ToLower(string(x))
	default:
		return v
	}
}

// sqlCursor adapts *sql.Rows to cursor.
type sqlCursor struct {
	*sql.Rows
}

func (c sqlCursor) Close() {
	_ = c.Rows.Close()
}

// sqlConn adapts a database/sql pool.
type sqlConn struct {
	db *sql.DB
}

func (c sqlConn) query(ctx context.Context, sql string, args ...any) (cursor, error) {
	rows, err := c.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return sqlCursor{Rows: rows}, nil
}

func (c sqlConn) exec(ctx context.Context, sql string) error {
	_, err := c.db.ExecContext(ctx, sql)
	return err
}

func (c sqlConn) ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c sqlConn) close() {
	_ = c.db.Close()
}

// NewSQLite returns a Store backed by a go-sqlite3 database opened with
// SQLiteDriver.
func NewSQLite(db *sql.DB, opts ...Option) *Store {
	return newStore(sqlConn{db: db}, sqliteDialect, opts...)
}

// OpenSQLite opens the SQLite database at dsn. An in-memory database is
// limited to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, cfg config.AuditStoreConfig, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(SQLiteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: open sqlite: %w", err)
	}

	if isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 && !isMemoryDSN(dsn) {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}

	return NewSQLite(db, opts...), nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
