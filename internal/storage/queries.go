package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type EntryRow struct {
	ID           int64
	SessionID    string
	Category     string
	PowerWatts   float64
	HoursPerDay  float64
	PricePerUnit float64
}

type DraftRow struct {
	SessionID    string
	Category     string
	PowerWatts   float64
	HoursPerDay  float64
	PricePerUnit float64
}

const createEntry = `
INSERT INTO entries (session_id, category, power_watts, hours_per_day, price_per_unit)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateEntryParams struct {
	SessionID    string
	Category     string
	PowerWatts   float64
	HoursPerDay  float64
	PricePerUnit float64
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createEntry,
		arg.SessionID,
		arg.Category,
		arg.PowerWatts,
		arg.HoursPerDay,
		arg.PricePerUnit,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listEntries = `
SELECT id, session_id, category, power_watts, hours_per_day, price_per_unit
FROM entries
WHERE session_id = ?
ORDER BY id ASC`

func (q *Queries) ListEntries(ctx context.Context, sessionID string) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntries, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []EntryRow{}
	for rows.Next() {
		var i EntryRow
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.Category,
			&i.PowerWatts,
			&i.HoursPerDay,
			&i.PricePerUnit,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDraft = `
SELECT session_id, category, power_watts, hours_per_day, price_per_unit
FROM drafts
WHERE session_id = ?`

func (q *Queries) GetDraft(ctx context.Context, sessionID string) (DraftRow, error) {
	row := q.db.QueryRowContext(ctx, getDraft, sessionID)
	var i DraftRow
	err := row.Scan(
		&i.SessionID,
		&i.Category,
		&i.PowerWatts,
		&i.HoursPerDay,
		&i.PricePerUnit,
	)
	return i, err
}

const upsertDraft = `
INSERT INTO drafts (session_id, category, power_watts, hours_per_day, price_per_unit, updated_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(session_id) DO UPDATE SET
    category = excluded.category,
    power_watts = excluded.power_watts,
    hours_per_day = excluded.hours_per_day,
    price_per_unit = excluded.price_per_unit,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertDraft(ctx context.Context, arg DraftRow) error {
	_, err := q.db.ExecContext(ctx, upsertDraft,
		arg.SessionID,
		arg.Category,
		arg.PowerWatts,
		arg.HoursPerDay,
		arg.PricePerUnit,
	)
	return err
}

const deleteSessionEntries = `DELETE FROM entries WHERE session_id = ?`

func (q *Queries) DeleteSessionEntries(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionEntries, sessionID)
	return err
}

const deleteDraft = `DELETE FROM drafts WHERE session_id = ?`

func (q *Queries) DeleteDraft(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteDraft, sessionID)
	return err
}

const touchSession = `
INSERT INTO sessions (session_id, last_seen)
VALUES (?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    last_seen = excluded.last_seen`

func (q *Queries) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, touchSession, sessionID, at.UTC().Format(timeLayout))
	return err
}

const listStaleSessions = `
SELECT session_id
FROM sessions
WHERE last_seen < ?
ORDER BY last_seen ASC`

func (q *Queries) ListStaleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listStaleSessions, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSession = `DELETE FROM sessions WHERE session_id = ?`

func (q *Queries) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, sessionID)
	return err
}

// timeLayout matches SQLite's CURRENT_TIMESTAMP text so backfilled and
// touched activity times compare as strings.
const timeLayout = "2006-01-02 15:04:05"
