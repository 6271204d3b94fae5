package amqp

import (
	"encoding/json"
	"time"
)

// EntryCreatedMessage announces one newly materialized ledger entry.
// It carries only identifiers; the export worker fetches the full entry from
// storage so the queue never holds stale amounts.
type EntryCreatedMessage struct {
	EntryID   string    `json:"entry_id"`
	OrgID     string    `json:"org_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryCreatedMessage creates a message for a freshly created entry
func NewEntryCreatedMessage(entryID, orgID string) *EntryCreatedMessage {
	return &EntryCreatedMessage{
		EntryID:   entryID,
		OrgID:     orgID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryCreatedMessageFromJSON creates a message from JSON bytes
func EntryCreatedMessageFromJSON(data []byte) (*EntryCreatedMessage, error) {
	var msg EntryCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
