package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionSyncMessage announces a stored transaction. It carries only the
// key; the consumer reads the record from the database.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64, owner string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Owner:     owner,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes a message; an id of zero is invalid.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, errors.New("sync message without id")
	}
	return &msg, nil
}
