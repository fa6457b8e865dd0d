package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/evidentia/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id         UUID PRIMARY KEY,
	share_id   TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	mode       TEXT NOT NULL,
	source     TEXT NOT NULL,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores reports in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and makes sure the reports
// table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Save inserts r.
func (p *Postgres) Save(ctx context.Context, r *StoredReport) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO reports (id, share_id, title, verdict, confidence, mode, source, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ShareID, r.Title, string(r.Verdict), r.Confidence, r.Mode, r.Source, []byte(r.Report), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get loads a report by uuid or share id.
func (p *Postgres) Get(ctx context.Context, idOrShareID string) (*StoredReport, error) {
	id, shareID, err := parseLookup(idOrShareID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, share_id, title, verdict, confidence, mode, source, report, created_at FROM reports `
	var row pgx.Row
	if shareID != "" {
		row = p.pool.QueryRow(ctx, query+`WHERE share_id = $1`, shareID)
	} else {
		row = p.pool.QueryRow(ctx, query+`WHERE id = $1`, id)
	}

	var (
		r       StoredReport
		rid     uuid.UUID
		verdict string
		body    []byte
	)
	err = row.Scan(&rid, &r.ShareID, &r.Title, &verdict, &r.Confidence, &r.Mode, &r.Source, &body, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	r.ID = rid
	r.Verdict = types.Verdict(verdict)
	r.Report = body
	return &r, nil
}
