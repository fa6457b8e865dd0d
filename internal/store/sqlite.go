package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jonathan/evidentia/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
  id         TEXT PRIMARY KEY,
  share_id   TEXT NOT NULL UNIQUE,
  title      TEXT NOT NULL,
  verdict    TEXT NOT NULL,
  confidence INTEGER NOT NULL,
  mode       TEXT NOT NULL,
  source     TEXT NOT NULL,
  report     TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
`

// SQLite stores reports in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Save inserts r.
func (s *SQLite) Save(ctx context.Context, r *StoredReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, share_id, title, verdict, confidence, mode, source, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.ShareID, r.Title, string(r.Verdict), r.Confidence, r.Mode, r.Source,
		string(r.Report), r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get loads a report by uuid or share id.
func (s *SQLite) Get(ctx context.Context, idOrShareID string) (*StoredReport, error) {
	id, shareID, err := parseLookup(idOrShareID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, share_id, title, verdict, confidence, mode, source, report, created_at FROM reports `
	var row *sql.Row
	if shareID != "" {
		row = s.db.QueryRowContext(ctx, query+`WHERE share_id = ?`, shareID)
	} else {
		row = s.db.QueryRowContext(ctx, query+`WHERE id = ?`, id.String())
	}

	var (
		r                      StoredReport
		rid, verdict, body, ts string
	)
	err = row.Scan(&rid, &r.ShareID, &r.Title, &verdict, &r.Confidence, &r.Mode, &r.Source, &body, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if r.ID, err = uuid.Parse(rid); err != nil {
		return nil, fmt.Errorf("corrupt report id %q: %w", rid, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("corrupt report timestamp %q: %w", ts, err)
	}
	r.Verdict = types.Verdict(verdict)
	r.Report = []byte(body)
	return &r, nil
}
