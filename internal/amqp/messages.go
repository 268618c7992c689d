package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"energycalc/internal/core"
)

// EntryAppendedMessage announces that an entry was added to a session.
// Sequence is the 1-based position of the entry in the session.
type EntryAppendedMessage struct {
	SessionID string     `json:"session_id"`
	Sequence  int        `json:"sequence"`
	Ref       string     `json:"ref,omitempty"`
	Entry     core.Entry `json:"entry"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewEntryAppendedMessage(sessionID string, sequence int, ref string, e core.Entry) *EntryAppendedMessage {
	return &EntryAppendedMessage{
		SessionID: sessionID,
		Sequence:  sequence,
		Ref:       ref,
		Entry:     e,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryAppendedMessageFromJSON decodes a message and rejects one without a
// session ID.
func EntryAppendedMessageFromJSON(data []byte) (*EntryAppendedMessage, error) {
	var msg EntryAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SessionID == "" {
		return nil, errors.New("message has no session_id")
	}
	return &msg, nil
}
