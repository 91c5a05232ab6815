package database

import (
	"context"
	"fmt"

	"arbscan/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	Migrate(ctx context.Context) error
	LogRun(ctx context.Context, run model.ScanRun) error
}

// PostgresRepository records scan runs in PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database at connString.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

const createScanRunsSQL = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	status VARCHAR(16) NOT NULL,
	exchange_a VARCHAR(50) NOT NULL,
	exchange_b VARCHAR(50) NOT NULL,
	symbols INTEGER NOT NULL,
	fetch_failures INTEGER NOT NULL,
	evaluated INTEGER NOT NULL,
	ranked INTEGER NOT NULL,
	notified INTEGER NOT NULL,
	output_path TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);`

// Migrate creates the scan_runs table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createScanRunsSQL); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// LogRun inserts one scan run summary.
func (r *PostgresRepository) LogRun(ctx context.Context, run model.ScanRun) error {
	const insertSQL = `
	INSERT INTO scan_runs (id, started_at, finished_at, status, exchange_a, exchange_b,
		symbols, fetch_failures, evaluated, ranked, notified, output_path, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.Pool.Exec(ctx, insertSQL,
		run.ID, run.StartedAt, run.FinishedAt, string(run.Status), run.ExchangeA, run.ExchangeB,
		run.Symbols, run.FetchFailures, run.Evaluated, run.Ranked, run.Notified, run.OutputPath, run.Error,
	)
	if err != nil {
		return fmt.Errorf("%w: log run %s: %v", model.ErrDeliveryFailed, run.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}
