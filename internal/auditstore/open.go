package auditstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/bpmonitor/internal/config"
)

// ErrNoDSN is returned when no connection string is configured.
var ErrNoDSN = errors.New("audit store DSN not configured")

// Open connects the store selected by cfg.Driver. The DSN comes from the
// environment variable named by cfg.DSNEnv, falling back to cfg.DSN.
// SQLite defaults to an in-memory database when no DSN is set.
func Open(ctx context.Context, cfg config.AuditStoreConfig, opts ...Option) (*Store, error) {
	opts = append([]Option{WithTrailMode(cfg.TrailMode)}, opts...)
	dsn := cfg.ResolveDSN()

	switch cfg.Driver {
	case config.DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		return OpenSQLite(ctx, cfg, dsn, opts...)
	case config.DriverPostgres, "":
		if dsn == "" {
			if cfg.DSNEnv != "" {
				return nil, fmt.Errorf("%w: set %s", ErrNoDSN, cfg.DSNEnv)
			}
			return nil, ErrNoDSN
		}
		return OpenPostgres(ctx, cfg, dsn, opts...)
	default:
		return nil, fmt.Errorf("audit store: unsupported driver %q", cfg.Driver)
	}
}
