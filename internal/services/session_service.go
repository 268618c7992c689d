package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"energycalc/internal/amqp"
	"energycalc/internal/catalog"
	"energycalc/internal/chart"
	"energycalc/internal/core"
	"energycalc/internal/log"
	"energycalc/internal/store"
)

// EntryPublisher announces appended entries. Implemented by *amqp.Client.
type EntryPublisher interface {
	PublishEntryAppended(ctx context.Context, msg *amqp.EntryAppendedMessage) error
}

// Snapshot is everything the page needs to render one session.
type Snapshot struct {
	SessionID string
	Draft     core.Draft
	Entries   []core.Entry
	Totals    core.Totals
	Series    core.Series
	Charts    chart.Set
}

const lockStripes = 64

// SessionService orchestrates draft edits and submissions over a session
// backend and publishes entry events when a publisher is configured.
type SessionService struct {
	store     store.Backend
	catalog   *catalog.Catalog
	palettes  chart.Palettes
	publisher EntryPublisher
	logger    *log.Logger

	locks [lockStripes]sync.Mutex
}

// NewSessionService wires a service. cat and publisher may be nil.
func NewSessionService(st store.Backend, cat *catalog.Catalog, publisher EntryPublisher, logger *log.Logger) *SessionService {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SessionService{
		store:     st,
		catalog:   cat,
		palettes:  cat.ChartPalettes(),
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentSession),
	}
}

// Catalog returns the category catalog shown in the selector.
func (s *SessionService) Catalog() *catalog.Catalog {
	return s.catalog
}

// lock serializes read-modify-write sequences of one session.
func (s *SessionService) lock(sessionID string) func() {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

func (s *SessionService) load(ctx context.Context, sessionID string) (*core.Session, error) {
	d, err := s.store.LoadDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	entries, err := s.store.ListEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	sess := core.RestoreSession(d, entries)
	s.normalize(sess)
	return sess, nil
}

// normalize moves a draft whose category is not selectable onto the
// catalog default.
func (s *SessionService) normalize(sess *core.Session) {
	if !s.catalog.Contains(sess.Draft().Category) {
		sess.SetField(core.FieldCategory, s.catalog.Default)
	}
}

func (s *SessionService) snapshot(sessionID string, sess *core.Session) Snapshot {
	totals := sess.Totals()
	series := core.Project(totals)
	return Snapshot{
		SessionID: sessionID,
		Draft:     sess.Draft(),
		Entries:   sess.Entries(),
		Totals:    totals,
		Series:    series,
		Charts:    chart.Build(series, s.palettes),
	}
}

// Snapshot aggregates the session's entries and builds both charts.
func (s *SessionService) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(sessionID, sess), nil
}

// apply sets one raw form value on the session draft. A category outside
// the catalog leaves the current category in place.
func (s *SessionService) apply(sess *core.Session, field, raw string) {
	if field == core.FieldCategory && !s.catalog.Contains(strings.TrimSpace(raw)) {
		s.logger.Debug("Ignoring category outside the catalog", log.FieldCategory, raw)
		return
	}
	sess.SetField(field, raw)
}

// UpdateDraft applies one field edit and stores the draft.
func (s *SessionService) UpdateDraft(ctx context.Context, sessionID, field, raw string) (core.Draft, error) {
	defer s.lock(sessionID)()

	d, err := s.store.LoadDraft(ctx, sessionID)
	if err != nil {
		return core.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	sess := core.RestoreSession(d, nil)
	s.normalize(sess)
	s.apply(sess, field, raw)
	if err := s.store.SaveDraft(ctx, sessionID, sess.Draft()); err != nil {
		return core.Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return sess.Draft(), nil
}

// formFields is the order in which posted values are applied.
var formFields = []string{core.FieldCategory, core.FieldPower, core.FieldHours, core.FieldPricePerUnit}

// Submit applies the posted fields to the draft, appends the resulting entry
// and resets the draft. Submissions are never rejected for their values.
func (s *SessionService) Submit(ctx context.Context, sessionID string, form map[string]string) (Snapshot, core.Entry, error) {
	defer s.lock(sessionID)()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, core.Entry{}, err
	}
	for _, field := range formFields {
		if raw, ok := form[field]; ok {
			s.apply(sess, field, raw)
		}
	}

	e := sess.Submit()
	s.normalize(sess)
	ref, err := s.store.Append(ctx, sessionID, e, sess.Draft())
	if err != nil {
		return Snapshot{}, core.Entry{}, fmt.Errorf("append entry: %w", err)
	}

	fields := log.NewFields().
		WithSession(sessionID).
		WithOperation(log.OpSubmit).
		WithEntry(e.Category, e.PowerWatts, e.HoursPerDay, e.PricePerUnit)
	s.logger.InfoContext(ctx, "Entry submitted", fields.ToSlice()...)

	s.publish(ctx, amqp.NewEntryAppendedMessage(sessionID, sess.Len(), ref, e))

	return s.snapshot(sessionID, sess), e, nil
}

// publish is best effort: the entry is already stored.
func (s *SessionService) publish(ctx context.Context, msg *amqp.EntryAppendedMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryAppended(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish entry event",
			log.FieldSessionID, msg.SessionID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

// Reset discards every entry and the draft of a session.
func (s *SessionService) Reset(ctx context.Context, sessionID string) error {
	defer s.lock(sessionID)()

	if err := s.store.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.logger.DebugContext(ctx, "Session reset", log.FieldSessionID, sessionID)
	return nil
}

// Ping checks the session backend.
func (s *SessionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
