// Package storage persists rate limit violations to PostgreSQL for
// offline abuse analysis. The database is optional: when disabled the
// API simply runs without violation history.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/ratelimit"
)

type PostgresClient struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresClient(connectionURL string, logger *zap.Logger) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		pool:   pool,
		logger: logger,
	}, nil
}

func (c *PostgresClient) Close() {
	c.pool.Close()
}

func (c *PostgresClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.pool.Ping(ctx)
}

// SaveViolation implements ratelimit.ViolationTracker.
func (c *PostgresClient) SaveViolation(ctx context.Context, v ratelimit.Violation) error {
	query := `
		INSERT INTO rate_limit_violations (identity, rule_prefix, path, method, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.pool.Exec(ctx, query, v.Identity, v.RulePrefix, v.Path, v.Method, v.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save violation: %w", err)
	}

	return nil
}

// GetRecentViolations returns violations within the duration, newest first.
func (c *PostgresClient) GetRecentViolations(ctx context.Context, duration time.Duration) ([]*ViolationRecord, error) {
	query := `
		SELECT id, identity, rule_prefix, path, method, occurred_at, created_at
		FROM rate_limit_violations
		WHERE occurred_at > $1
		ORDER BY occurred_at DESC
		LIMIT 1000
	`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	since := time.Now().Add(-duration)
	rows, err := c.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var records []*ViolationRecord
	for rows.Next() {
		var r ViolationRecord
		if err := rows.Scan(
			&r.ID,
			&r.Identity,
			&r.RulePrefix,
			&r.Path,
			&r.Method,
			&r.OccurredAt,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan violation row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return records, nil
}

// GetViolationStats aggregates violations over the duration.
func (c *PostgresClient) GetViolationStats(ctx context.Context, duration time.Duration) (*ViolationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(DISTINCT identity),
			COALESCE(MODE() WITHIN GROUP (ORDER BY rule_prefix), ''),
			COALESCE(MODE() WITHIN GROUP (ORDER BY identity), '')
		FROM rate_limit_violations
		WHERE occurred_at > $1
	`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	since := time.Now().Add(-duration)
	stats := &ViolationStats{Duration: duration}
	err := c.pool.QueryRow(ctx, query, since).Scan(
		&stats.Total,
		&stats.UniqueClients,
		&stats.TopRulePrefix,
		&stats.TopIdentity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query violation stats: %w", err)
	}

	return stats, nil
}

// EnsureSchema creates the violations table when it does not exist yet.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS rate_limit_violations (
			id BIGSERIAL PRIMARY KEY,
			identity TEXT NOT NULL,
			rule_prefix TEXT NOT NULL,
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_violations_occurred_at
			ON rate_limit_violations (occurred_at DESC);
	`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure violations schema: %w", err)
	}

	c.logger.Debug("Verified rate limit violations schema")
	return nil
}
