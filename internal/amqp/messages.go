package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type Action string

const (
	ActionSync   Action = "sync"
	ActionDelete Action = "delete"
)

// TransactionSyncMessage asks the worker to mirror or remove one transaction.
// It carries only the ID and version; the worker reads the row from SQLite.
type TransactionSyncMessage struct {
	Action    Action    `json:"action"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates a sync message for one stored version
func NewTransactionSyncMessage(id, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		Action:    ActionSync,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewTransactionDeleteMessage creates a message removing id from the mirror
func NewTransactionDeleteMessage(id int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		Action:    ActionDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes a message. Messages without an
// action are treated as sync requests.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case "":
		msg.Action = ActionSync
	case ActionSync, ActionDelete:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid transaction id %d", msg.ID)
	}
	return &msg, nil
}
