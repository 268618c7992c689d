// Package worker folds entry events into running per-session totals.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"energycalc/internal/amqp"
	"energycalc/internal/cache"
	"energycalc/internal/core"
	"energycalc/internal/log"
)

type running struct {
	totals core.Totals
	seen   map[int]struct{}
}

// TotalsWorker keeps the totals of recently active sessions. Redelivered
// events (same session and sequence) are folded once.
type TotalsWorker struct {
	mu       sync.Mutex
	sessions *cache.LRUCache[*running]
	logger   *log.Logger

	processed  atomic.Int64
	duplicates atomic.Int64
}

func NewTotalsWorker(maxSessions int, ttl time.Duration, logger *log.Logger) *TotalsWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TotalsWorker{
		sessions: cache.NewLRUCache[*running](maxSessions, ttl),
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEntryAppended folds one event. It matches amqp.Handler.
func (w *TotalsWorker) HandleEntryAppended(ctx context.Context, msg *amqp.EntryAppendedMessage) error {
	if msg == nil || msg.SessionID == "" {
		return errors.New("entry event without session")
	}

	w.mu.Lock()
	r, ok := w.sessions.Get(msg.SessionID)
	if !ok {
		r = &running{totals: core.Totals{}, seen: make(map[int]struct{})}
	}
	if _, dup := r.seen[msg.Sequence]; dup && msg.Sequence > 0 {
		w.mu.Unlock()
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Skipping redelivered entry event",
			log.FieldSessionID, msg.SessionID,
			"sequence", msg.Sequence)
		return nil
	}
	r.seen[msg.Sequence] = struct{}{}
	r.totals = r.totals.Add(msg.Entry)
	w.sessions.Set(msg.SessionID, r)
	row, _ := r.totals.Get(msg.Entry.Category)
	energy, cost := r.totals.Sum()
	w.mu.Unlock()

	w.processed.Add(1)
	w.logger.InfoContext(ctx, "Entry folded into session totals",
		log.FieldSessionID, msg.SessionID,
		log.FieldOperation, log.OpConsume,
		log.FieldCategory, row.Category,
		log.FieldEnergyKWh, row.EnergyKWh,
		log.FieldCost, row.Cost,
		"session_energy_kwh", energy,
		"session_cost", cost)
	return nil
}

// Totals returns a copy of the running totals of a session.
func (w *TotalsWorker) Totals(sessionID string) (core.Totals, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return append(core.Totals{}, r.totals...), true
}

// Cache exposes the session cache for periodic cleanup.
func (w *TotalsWorker) Cache() cache.Cleaner {
	return w.sessions
}

// Processed returns the number of folded events.
func (w *TotalsWorker) Processed() int64 {
	return w.processed.Load()
}

// Duplicates returns the number of skipped redeliveries.
func (w *TotalsWorker) Duplicates() int64 {
	return w.duplicates.Load()
}
