// Package store declares the ports session backends implement.
package store

import (
	"context"

	"energycalc/internal/core"
)

// Ports for session state backends. A session that was never written reads
// as no entries and the default draft.
type (
	EntryWriter interface {
		// Append stores e at the end of the session's entries and next as
		// its draft in one step: on error neither is stored. It returns a
		// backend reference for the entry.
		Append(ctx context.Context, sessionID string, e core.Entry, next core.Draft) (ref string, err error)
	}

	EntryLister interface {
		// ListEntries returns the session's entries in submission order.
		ListEntries(ctx context.Context, sessionID string) ([]core.Entry, error)
	}

	DraftStore interface {
		LoadDraft(ctx context.Context, sessionID string) (core.Draft, error)
		SaveDraft(ctx context.Context, sessionID string, d core.Draft) error
	}

	// SessionResetter discards every trace of a session. Resetting an
	// unknown session is a no-op.
	SessionResetter interface {
		Reset(ctx context.Context, sessionID string) error
	}

	// Pinger reports whether the backend is usable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Backend bundles all session ports.
type Backend interface {
	EntryWriter
	EntryLister
	DraftStore
	SessionResetter
	Pinger
}
