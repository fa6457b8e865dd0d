// Package store persists finished reports so they can be fetched again by id
// or by a short share id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

// ShareIDLength is the length of generated share ids.
const ShareIDLength = 10

// maxShareIDLength is the longest id still treated as a share id on lookup.
const maxShareIDLength = 12

const titleLength = 80

// ErrNotFound is returned when no report matches the requested id.
var ErrNotFound = errors.New("report not found")

// Store saves and loads reports.
type Store interface {
	Save(ctx context.Context, r *StoredReport) error
	Get(ctx context.Context, idOrShareID string) (*StoredReport, error)
	Close()
}

// StoredReport is one persisted analysis.
type StoredReport struct {
	ID         uuid.UUID       `json:"id"`
	ShareID    string          `json:"shareId"`
	Title      string          `json:"title"`
	Verdict    types.Verdict   `json:"verdict"`
	Confidence int             `json:"confidence"`
	Mode       string          `json:"mode"`
	Source     string          `json:"source"`
	Report     json.RawMessage `json:"report"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Decode unmarshals the stored report body.
func (s *StoredReport) Decode() (*types.TruthReport, error) {
	var r types.TruthReport
	if err := json.Unmarshal(s.Report, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored report: %w", err)
	}
	return &r, nil
}

// NewStoredReport builds a record for r with fresh ids. The title is the
// first claim, falling back to the first verdict reason.
func NewStoredReport(r *types.TruthReport, mode string) (*StoredReport, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return &StoredReport{
		ID:         uuid.New(),
		ShareID:    NewShareID(),
		Title:      Title(r),
		Verdict:    r.Verdict,
		Confidence: r.Confidence,
		Mode:       mode,
		Source:     string(r.Source),
		Report:     body,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Title picks a short human label for a report.
func Title(r *types.TruthReport) string {
	var first, why string
	if len(r.Claims) > 0 {
		first = r.Claims[0].Text
	}
	if len(r.ExecutiveSummary.Why) > 0 {
		why = r.ExecutiveSummary.Why[0]
	}
	title := textutil.CollapseSpace(textutil.FirstNonEmpty(first, why, "Untitled report"))
	return textutil.Ellipsize(title, titleLength)
}

// NewShareID returns a random id of ShareIDLength lowercase hex characters.
func NewShareID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:ShareIDLength]
}

// IsShareID reports whether id should be looked up as a share id rather
// than a uuid.
func IsShareID(id string) bool {
	return id != "" && len(id) <= maxShareIDLength && !strings.Contains(id, "-")
}

// parseLookup splits an id into the uuid or share id to query by.
func parseLookup(id string) (uuid.UUID, string, error) {
	id = strings.TrimSpace(id)
	if IsShareID(id) {
		return uuid.Nil, id, nil
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, "", ErrNotFound
	}
	return u, "", nil
}

// Settings selects a backend.
type Settings struct {
	DatabaseURL string
	SQLitePath  string
}

// Open returns the Postgres store when a database URL is set, the SQLite
// store when a path is set, and (nil, nil) when persistence is off.
func Open(ctx context.Context, s Settings) (Store, error) {
	switch {
	case s.DatabaseURL != "":
		pg, err := ConnectPostgres(ctx, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case s.SQLitePath != "":
		lite, err := OpenSQLite(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
	return nil, nil
}
