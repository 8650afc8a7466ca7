// Package sqlitestore persists topicfy history in SQLite: published topics
// with their fingerprints, declined topics, and per-source tier overrides.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go-topicfy"
)

// Store implements topicfy.HistoryStore.
// All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Store at dbPath, creating tables if they don't exist.
// ":memory:" opens an in-memory database that lives until Close.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: is its own database, so pin one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS published (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL,
		claim TEXT NOT NULL DEFAULT '',
		event_fingerprint TEXT NOT NULL DEFAULT '',
		truth_fingerprint TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		published_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_published_at ON published(published_at DESC);
	CREATE INDEX IF NOT EXISTS idx_published_event ON published(event_fingerprint);
	CREATE INDEX IF NOT EXISTS idx_published_truth ON published(truth_fingerprint);

	CREATE TABLE IF NOT EXISTS declined (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		declined_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS source_tiers (
		name TEXT PRIMARY KEY,
		tier INTEGER NOT NULL CHECK (tier BETWEEN 1 AND 3)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RecordPublished stores an accepted candidate and returns its new id.
// A zero at is stored as now.
func (s *Store) RecordPublished(ctx context.Context, c *topicfy.Candidate, at time.Time) (string, error) {
	if c == nil {
		return "", errors.New("nil candidate")
	}
	if at.IsZero() {
		at = time.Now()
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO published (id, title, slug, claim, event_fingerprint, truth_fingerprint, image, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Title, c.Slug, string(c.Claim), c.EventFingerprint, c.TruthFingerprint, c.Image, at.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert published: %w", err)
	}
	return id, nil
}

// ListRecent implements topicfy.HistoryStore, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]topicfy.HistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, slug, claim, event_fingerprint, truth_fingerprint, published_at
		FROM published
		ORDER BY published_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query published: %w", err)
	}
	defer rows.Close()

	var out []topicfy.HistoryEntry
	for rows.Next() {
		var (
			h     topicfy.HistoryEntry
			claim string
			at    int64
		)
		if err := rows.Scan(&h.ID, &h.Title, &h.Slug, &claim, &h.EventFingerprint, &h.TruthFingerprint, &at); err != nil {
			return nil, fmt.Errorf("scan published: %w", err)
		}
		h.Claim = topicfy.ClaimType(claim)
		h.PublishedAt = time.Unix(0, at)
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecordDeclined remembers an editor's rejection of title.
func (s *Store) RecordDeclined(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO declined (id, title, declined_at) VALUES (?, ?, ?)",
		uuid.NewString(), title, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert declined: %w", err)
	}
	return nil
}

// ListDeclined implements topicfy.HistoryStore.
func (s *Store) ListDeclined(ctx context.Context) ([]topicfy.DeclinedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT title FROM declined ORDER BY declined_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query declined: %w", err)
	}
	defer rows.Close()

	var out []topicfy.DeclinedEntry
	for rows.Next() {
		var d topicfy.DeclinedEntry
		if err := rows.Scan(&d.Title); err != nil {
			return nil, fmt.Errorf("scan declined: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetSourceTier stores a tier override for a source name.
func (s *Store) SetSourceTier(ctx context.Context, name string, tier int) error {
	if tier < topicfy.TierPremier || tier > topicfy.TierUnknown {
		return fmt.Errorf("tier %d out of range", tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_tiers (name, tier) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET tier = excluded.tier`, name, tier)
	if err != nil {
		return fmt.Errorf("upsert source tier: %w", err)
	}
	return nil
}

// SourceTier implements topicfy.HistoryStore.
func (s *Store) SourceTier(ctx context.Context, name string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tier int
	err := s.db.QueryRowContext(ctx, "SELECT tier FROM source_tiers WHERE name = ?", name).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query source tier: %w", err)
	}
	return tier, true, nil
}

var _ topicfy.HistoryStore = (*Store)(nil)
