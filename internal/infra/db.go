// README: Postgres connection pool initialization using pgxpool.
package infra

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB builds the process-wide pool. With insecureTLS, certificate checks are
// skipped for any TLS attempt the DSN's sslmode asks for; managed hosts often
// present certificates the client cannot verify.
func NewDB(ctx context.Context, dsn string, insecureTLS bool) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if insecureTLS {
		relaxTLS(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func relaxTLS(cfg *pgxpool.Config) {
	if cfg.ConnConfig.TLSConfig != nil {
		cfg.ConnConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	for _, fb := range cfg.ConnConfig.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}
}
