// Package store persists the settled event history of analysis jobs in
// postgres, keyed by workflow and build URL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rca_reports (
    build      TEXT NOT NULL,
    workflow   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    events     TEXT,
    PRIMARY KEY (build, workflow)
)`

// Store provides the report history repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a pgx pool from the store configuration.
func Connect(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid store DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store pool: %w", err)
	}
	return pool, nil
}

// New verifies the connection and ensures the schema exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// GetReport returns the settled event history for a build, or nil when the
// analysis has not settled yet. The first miss inserts a placeholder row so
// the build is marked as claimed.
func (s *Store) GetReport(ctx context.Context, workflow, build string) ([]schemas.Event, error) {
	var raw *string
	err := s.pool.QueryRow(ctx,
		`SELECT events FROM rca_reports WHERE build = $1 AND workflow = $2`,
		build, workflow,
	).Scan(&raw)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO rca_reports (build, workflow) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			build, workflow,
		); err != nil {
			return nil, fmt.Errorf("failed to claim report row: %w", err)
		}
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	if raw == nil {
		return nil, nil
	}
	var events []schemas.Event
	if err := json.Unmarshal([]byte(*raw), &events); err != nil {
		return nil, fmt.Errorf("undecodable stored report %s/%s: %w", workflow, build, err)
	}
	return events, nil
}

// SetReport stores the settled history of a build.
func (s *Store) SetReport(ctx context.Context, workflow, build string, events []schemas.Event) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode report events: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rca_reports SET events = $1 WHERE build = $2 AND workflow = $3`,
		string(raw), build, workflow,
	)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The row was never claimed through GetReport.
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO rca_reports (build, workflow, events) VALUES ($1, $2, $3)`,
			build, workflow, string(raw),
		); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
	}
	s.log.Info("Stored report history",
		zap.String("workflow", workflow),
		zap.String("build", build),
		zap.Int("events", len(events)),
	)
	return nil
}
