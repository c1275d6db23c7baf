// Package warehouse validates resolved SQL directly against the target
// warehouse before the backend is invoked. The backend owns execution;
// preflight asks postgres to plan the statement so syntax and relation
// errors surface without paying for a backend subprocess startup.
package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/config"
	"github.com/queryward/queryward/pkg/logging"
)

// Preflight holds a connection pool to the warehouse named by the
// configured DSN. Construct with New and Close when done; the pool is
// owned by this type.
type Preflight struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New parses the DSN and opens a pool against it. The host is rewritten
// for container environments so a DSN pointing at localhost reaches the
// host machine from inside Docker.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Preflight, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse DSN: %w", err)
	}
	poolCfg.ConnConfig.Host = config.ResolveHostForDocker(poolCfg.ConnConfig.Host)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create warehouse pool: %w", err)
	}

	l := logger.Named("warehouse")
	l.Debug("warehouse pool created", zap.String("dsn", logging.SanitizeDSN(dsn)))
	return &Preflight{
		pool:   pool,
		logger: l,
	}, nil
}

// Validate asks the warehouse to plan the statement without running it.
// A planning failure means the SQL would not survive execution either:
// bad syntax, a missing relation, a type mismatch.
func (p *Preflight) Validate(ctx context.Context, sql string) error {
	if _, err := p.pool.Exec(ctx, "EXPLAIN "+sql); err != nil {
		return fmt.Errorf("invalid SQL: %w", err)
	}
	return nil
}

// Ping verifies the pool can reach the warehouse and run a trivial query.
func (p *Preflight) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}

	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("test query returned %d", one)
	}

	p.logger.Debug("warehouse connection verified")
	return nil
}

// Database reports the database the pool is connected to.
func (p *Preflight) Database(ctx context.Context) (string, error) {
	var name string
	if err := p.pool.QueryRow(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current database: %w", err)
	}
	return name, nil
}

// Close releases the pool.
func (p *Preflight) Close() {
	p.pool.Close()
}
