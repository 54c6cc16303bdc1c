package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ledger event kinds published on the exchange. The export worker only needs
// to know which owner-month to re-aggregate, so every mutation maps to the
// same lightweight shape.
const (
	EventTransactionCreated = "transaction_created"
	EventTransactionUpdated = "transaction_updated"
	EventTransactionDeleted = "transaction_deleted"
	EventStatementClosed    = "statement_closed"
	EventStatementPayment   = "statement_payment"
	EventPlanMaterialized   = "plan_materialized"
)

// LedgerEventMessage notifies consumers that an owner's ledger changed within
// a given month. It carries no amounts: the worker re-reads the ledger from
// storage, so a lost or duplicated delivery is harmless.
type LedgerEventMessage struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	Month     string    `json:"month"` // YYYY-MM
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event with a fresh id.
func NewLedgerEventMessage(kind, ownerID, month string) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:   uuid.NewString(),
		Kind:      kind,
		OwnerID:   ownerID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
