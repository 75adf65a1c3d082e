package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/persons/internal/config"
	"github.com/JonMunkholm/persons/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS persons (
	id         BIGSERIAL PRIMARY KEY,
	date       DATE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	sur_name   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_persons_date ON persons (date);
`

var copyColumns = []string{"date", "first_name", "last_name", "sur_name", "city", "country"}

// Postgres stores persons in PostgreSQL. Batches are loaded with COPY.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ConnectPostgres opens and pings a pool tuned by cfg.
func ConnectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "driver", "postgres", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// EnsureSchema creates the persons table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteBatch loads batch with a single COPY. The batch slice is not retained.
func (p *Postgres) WriteBatch(ctx context.Context, batch []core.Record) error {
	n, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"persons"},
		copyColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			r := batch[i]
			return []any{r.Date, r.FirstName, r.LastName, r.SurName, r.City, r.Country}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy persons: %w", err)
	}
	if n != int64(len(batch)) {
		return fmt.Errorf("copy persons: wrote %d of %d rows", n, len(batch))
	}
	return nil
}

// Source returns the persons matching f, ordered by id.
func (p *Postgres) Source(f core.Filter) core.RecordSource {
	return &pgSource{pool: p.pool, filter: f}
}

// Clear removes every person and resets the id sequence.
func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE TABLE persons RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate persons: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgSource struct {
	pool   *pgxpool.Pool
	filter core.Filter
}

func (s *pgSource) Count(ctx context.Context) (int64, error) {
	query, args := postgresDialect.countQuery(s.filter)
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

func (s *pgSource) Each(ctx context.Context, offset, limit int64, fn func(core.Record) error) error {
	query, args := postgresDialect.selectQuery(s.filter, offset, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r core.Record
		if err := rows.Scan(&r.Date, &r.FirstName, &r.LastName, &r.SurName, &r.City, &r.Country); err != nil {
			return fmt.Errorf("scan person: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
