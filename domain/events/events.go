package events

import (
	"time"

	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const TransactionStarted = eh.EventType("transaction:started")
const DeliveryConfirmed = eh.EventType("transaction:delivery-confirmed")
const TransactionCompleted = eh.EventType("transaction:completed")
const TransactionCancelled = eh.EventType("transaction:cancelled")
const TransactionExpired = eh.EventType("transaction:expired")

type TransactionData struct {
	ID        uuid.UUID
	OfferID   string
	SubjectID string
	ConsentID string
	EscrowID  string
	Amount    float64
	Deadline  time.Time
}

type DeliveryData struct {
	ConsentID    string
	EscrowID     string
	BundleDigest string
	LedgerTxHash string
}

type FailedData struct {
	Reason string
}

func init() {
	eh.RegisterEventData(TransactionStarted, func() eh.EventData {
		return &TransactionData{}
	})
	eh.RegisterEventData(DeliveryConfirmed, func() eh.EventData {
		return &DeliveryData{}
	})
	eh.RegisterEventData(TransactionCancelled, func() eh.EventData {
		return &FailedData{}
	})
}
