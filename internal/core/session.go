package core

// Session owns the draft and the entry list of one loaded page. Entries are
// append-only; the session is discarded as a whole.
type Session struct {
	draft   Draft
	entries []Entry
}

// NewSession returns an empty session with the default draft.
func NewSession() *Session {
	return &Session{draft: DefaultDraft()}
}

// RestoreSession rebuilds a session from stored state. The entries slice is
// copied.
func RestoreSession(d Draft, entries []Entry) *Session {
	return &Session{
		draft:   d,
		entries: append([]Entry(nil), entries...),
	}
}

// Draft returns the current draft.
func (s *Session) Draft() Draft {
	return s.draft
}

// SetField applies a raw form value to the draft.
func (s *Session) SetField(field, raw string) {
	s.draft.Set(field, raw)
}

// Submit appends a copy of the draft to the entries, resets the draft and
// returns the appended entry. Submissions are never rejected.
func (s *Session) Submit() Entry {
	e := s.draft.Entry()
	s.entries = append(s.entries, e)
	s.draft = DefaultDraft()
	return e
}

// Entries returns a copy of the submitted entries in submission order.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of submitted entries.
func (s *Session) Len() int {
	return len(s.entries)
}

// Totals aggregates the session's entries.
func (s *Session) Totals() Totals {
	return Aggregate(s.entries)
}

// Series projects the session's totals.
func (s *Session) Series() Series {
	return Project(s.Totals())
}
