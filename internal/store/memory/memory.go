// Package memory keeps session state in process memory. Sessions idle longer
// than the TTL, or pushed out by newer ones past the size limit, are dropped.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energycalc/internal/cache"
	"energycalc/internal/core"
)

type session struct {
	draft   core.Draft
	entries []core.Entry
}

type Store struct {
	mu       sync.Mutex
	sessions *cache.LRUCache[*session]
}

// New returns a store holding at most maxSessions sessions for ttl each.
func New(maxSessions int, ttl time.Duration) *Store {
	return &Store{sessions: cache.NewLRUCache[*session](maxSessions, ttl)}
}

// Cache exposes the session cache so it can be registered for cleanup.
func (s *Store) Cache() cache.Cleaner {
	return s.sessions
}

// lookup returns the session or a fresh one; callers hold s.mu.
func (s *Store) lookup(id string) *session {
	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	return &session{draft: core.DefaultDraft()}
}

// Append implements store.EntryWriter.
func (s *Store) Append(_ context.Context, sessionID string, e core.Entry, next core.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	sess.entries = append(sess.entries, e)
	sess.draft = next
	s.sessions.Set(sessionID, sess)
	return fmt.Sprintf("mem:%d", len(sess.entries)), nil
}

// ListEntries implements store.EntryLister.
func (s *Store) ListEntries(_ context.Context, sessionID string) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return []core.Entry{}, nil
	}
	return append([]core.Entry{}, sess.entries...), nil
}

// LoadDraft implements store.DraftStore.
func (s *Store) LoadDraft(_ context.Context, sessionID string) (core.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(sessionID).draft, nil
}

// SaveDraft implements store.DraftStore.
func (s *Store) SaveDraft(_ context.Context, sessionID string, d core.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	sess.draft = d
	s.sessions.Set(sessionID, sess)
	return nil
}

// Reset implements store.SessionResetter.
func (s *Store) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(sessionID)
	return nil
}

// Ping implements store.Pinger.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Size()
}
