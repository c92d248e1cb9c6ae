package amqp

import (
	"encoding/json"
	"time"
)

// TransactionLoggedMessage tells the rollup worker that a user's month needs
// recomputing. It carries identifiers only; the worker reads the full
// transaction history from the store.
type TransactionLoggedMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	YearMonth     string    `json:"year_month"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionLoggedMessage(txnID, userID, yearMonth string) *TransactionLoggedMessage {
	return &TransactionLoggedMessage{
		TransactionID: txnID,
		UserID:        userID,
		YearMonth:     yearMonth,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionLoggedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionLoggedMessageFromJSON creates a message from JSON bytes
func TransactionLoggedMessageFromJSON(data []byte) (*TransactionLoggedMessage, error) {
	var msg TransactionLoggedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
