package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Pool struct {
	*pgxpool.Pool
	*Queries
	log *zap.Logger
}

func NewPool(ctx context.Context, databaseURL string, logger *zap.Logger) (*Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database", zap.String("host", config.ConnConfig.Host), zap.String("database", config.ConnConfig.Database))
	return &Pool{
		Pool:    pool,
		Queries: NewQueries(pool),
		log:     logger,
	}, nil
}

func (p *Pool) Close() {
	p.Pool.Close()
}
