package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres wraps a PostgreSQL connection pool
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL connection pool
func NewPostgres(connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &Postgres{Pool: pool}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() {
	p.Pool.Close()
}

// HealthCheck performs a health check on the database
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS files (
			id            UUID PRIMARY KEY,
			original_name TEXT NOT NULL,
			storage_path  TEXT NOT NULL,
			size_bytes    BIGINT NOT NULL DEFAULT 0,
			mime_type     TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS clip_jobs (
			id                  UUID PRIMARY KEY,
			file_id             UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			source_path         TEXT,
			output_path         TEXT,
			start_seconds       DOUBLE PRECISION NOT NULL,
			end_seconds         DOUBLE PRECISION NOT NULL,
			force_keyframe_snap BOOLEAN NOT NULL DEFAULT FALSE,
			allow_smart_cut     BOOLEAN NOT NULL DEFAULT FALSE,
			status              TEXT NOT NULL,
			outcome             JSONB,
			error               TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at          TIMESTAMPTZ,
			completed_at        TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_clip_jobs_status ON clip_jobs (status);
		CREATE INDEX IF NOT EXISTS idx_clip_jobs_created_at ON clip_jobs (created_at DESC);
	`)
	return err
}
