// Package database provides the pgx connection pool and the repositories
// backing leads, tenant reminder settings, and call records.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/config"
)

// Pool wraps a pgx connection pool with structured logging.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens and verifies a connection pool.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pgxCfg.MaxConns = int32(cfg.MaxOpenConns)
	pgxCfg.MinConns = int32(cfg.MaxIdleConns)
	pgxCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgxCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database pool established",
		zap.Int32("max_conns", pgxCfg.MaxConns),
		zap.Int32("min_conns", pgxCfg.MinConns),
	)

	return &Pool{pool: pool, logger: logger}, nil
}

// Raw exposes the underlying pgx pool for repositories.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}

// HealthCheck verifies the pool can reach the database.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (p *Pool) Close() {
	p.logger.Info("closing database pool")
	p.pool.Close()
}
