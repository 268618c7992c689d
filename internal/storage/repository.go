// Package storage is the SQLite session backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"energycalc/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	ttl     time.Duration
	now     func() time.Time
}

// NewSQLiteRepository opens dsn, applies migrations and returns the
// repository. Sessions idle longer than ttl are removed by CleanExpired.
func NewSQLiteRepository(dsn string, ttl time.Duration) (*SQLiteRepository, error) {
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A shared in-memory database lives as long as one connection does.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements store.EntryWriter. The entry, the next draft and the
// session's activity time are written in one transaction.
func (r *SQLiteRepository) Append(ctx context.Context, sessionID string, e core.Entry, next core.Draft) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	id, err := q.CreateEntry(ctx, CreateEntryParams{
		SessionID:    sessionID,
		Category:     e.Category,
		PowerWatts:   e.PowerWatts,
		HoursPerDay:  e.HoursPerDay,
		PricePerUnit: e.PricePerUnit,
	})
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}
	if err := q.UpsertDraft(ctx, draftRow(sessionID, next)); err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}
	if err := q.TouchSession(ctx, sessionID, r.now()); err != nil {
		return "", fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit append: %w", err)
	}

	slog.DebugContext(ctx, "Entry saved to SQLite",
		"id", id,
		"session_id", sessionID,
		"category", e.Category)

	return strconv.FormatInt(id, 10), nil
}

// ListEntries implements store.EntryLister
func (r *SQLiteRepository) ListEntries(ctx context.Context, sessionID string) ([]core.Entry, error) {
	rows, err := r.queries.ListEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, core.Entry{
			Category:     row.Category,
			PowerWatts:   row.PowerWatts,
			HoursPerDay:  row.HoursPerDay,
			PricePerUnit: row.PricePerUnit,
		})
	}
	return entries, nil
}

// LoadDraft implements store.DraftStore
func (r *SQLiteRepository) LoadDraft(ctx context.Context, sessionID string) (core.Draft, error) {
	row, err := r.queries.GetDraft(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultDraft(), nil
	}
	if err != nil {
		return core.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	return core.Draft{
		Category:     row.Category,
		PowerWatts:   row.PowerWatts,
		HoursPerDay:  row.HoursPerDay,
		PricePerUnit: row.PricePerUnit,
	}, nil
}

// SaveDraft implements store.DraftStore
func (r *SQLiteRepository) SaveDraft(ctx context.Context, sessionID string, d core.Draft) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save draft: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.UpsertDraft(ctx, draftRow(sessionID, d)); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	if err := q.TouchSession(ctx, sessionID, r.now()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

func draftRow(sessionID string, d core.Draft) DraftRow {
	return DraftRow{
		SessionID:    sessionID,
		Category:     d.Category,
		PowerWatts:   d.PowerWatts,
		HoursPerDay:  d.HoursPerDay,
		PricePerUnit: d.PricePerUnit,
	}
}

// Reset implements store.SessionResetter
func (r *SQLiteRepository) Reset(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if err := deleteSessionRows(ctx, r.queries.WithTx(tx), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSessionRows(ctx context.Context, q *Queries, sessionID string) error {
	if err := q.DeleteSessionEntries(ctx, sessionID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if err := q.DeleteDraft(ctx, sessionID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if err := q.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpired removes sessions whose last entry or draft write is older
// than the TTL, entries and draft together, and returns how many sessions
// were dropped. It lets the cache manager sweep the database on the same
// schedule as the in-memory caches.
func (r *SQLiteRepository) CleanExpired() int {
	if r.ttl <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Warn("Failed to begin session cleanup", "error", err)
		return 0
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	stale, err := q.ListStaleSessions(ctx, r.now().Add(-r.ttl))
	if err != nil {
		slog.Warn("Failed to list stale sessions", "error", err)
		return 0
	}
	for _, id := range stale {
		if err := deleteSessionRows(ctx, q, id); err != nil {
			slog.Warn("Failed to delete stale session", "session_id", id, "error", err)
			return 0
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Warn("Failed to commit session cleanup", "error", err)
		return 0
	}
	return len(stale)
}
