package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DB wraps the database connection
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewDB opens a Postgres connection from dsn and makes sure the schema exists
func NewDB(ctx context.Context, dsn string, logger *zap.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := New(conn, logger)
	if err := db.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// New wraps an already opened connection
func New(conn *sql.DB, logger *zap.Logger) *DB {
	return &DB{conn: conn, logger: logger}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

const createCrawlRuns = `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'running',
		max_page INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		CONSTRAINT valid_run_status CHECK (status IN ('running', 'done', 'failed'))
	)`

const createBusinesses = `
	CREATE TABLE IF NOT EXISTS businesses (
		id SERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		run_id UUID REFERENCES crawl_runs(id) ON DELETE SET NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		social_media JSONB NOT NULL DEFAULT '[]',
		payment_options JSONB NOT NULL DEFAULT '[]',
		certificates JSONB NOT NULL DEFAULT '[]',
		other_information JSONB NOT NULL DEFAULT '{}',
		working_time JSONB NOT NULL DEFAULT '{}',
		parking_info JSONB NOT NULL DEFAULT '{}',
		economic_data JSONB NOT NULL DEFAULT '{}',
		logo TEXT NOT NULL DEFAULT '',
		pictures JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_crawl_runs_category ON crawl_runs(category)`,
	`CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category)`,
	`CREATE INDEX IF NOT EXISTS idx_businesses_run_id ON businesses(run_id)`,
}

// InitSchema creates the tables if they don't exist
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, createCrawlRuns); err != nil {
		return fmt.Errorf("failed to create crawl_runs table: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, createBusinesses); err != nil {
		return fmt.Errorf("failed to create businesses table: %w", err)
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			db.logger.Warn("failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}

	db.logger.Debug("database schema initialized")
	return nil
}
