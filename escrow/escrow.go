package escrow

import (
	"time"
)

// Status is the escrow lifecycle state.
type Status string

const (
	StatusCreated   = Status("created")
	StatusLocked    = Status("locked")
	StatusFulfilled = Status("fulfilled")
	StatusExpired   = Status("expired")
	StatusCancelled = Status("cancelled")
)

// Terminal reports whether the state is immutable.
func (s Status) Terminal() bool {
	switch s {
	case StatusFulfilled, StatusExpired, StatusCancelled:
		return true
	case StatusCreated, StatusLocked:
		return false
	}
	return false
}

// DeliveryCondition binds an escrow payout to a specific content digest and
// a PREIMAGE-SHA-256 hash lock. Only the commitment is public, the preimage
// stays with the engine until fulfillment.
type DeliveryCondition struct {
	ContentDigest    string
	Commitment       string
	DeliveryDeadline time.Time
}

// Escrow is a conditional payment held until its delivery condition is
// satisfied or its time window runs out.
type Escrow struct {
	ID            string
	Payer         string
	Payee         string
	Amount        float64
	ConsentID     string
	Condition     DeliveryCondition
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Status        Status
	OfferSequence uint32
	FulfillmentTx string
}

// StatusView is the public projection of an escrow. It never carries the
// preimage.
type StatusView struct {
	EscrowID         string    `json:"escrowId"`
	Status           Status    `json:"status"`
	Payer            string    `json:"payer"`
	Payee            string    `json:"payee"`
	Amount           float64   `json:"amount"`
	ConsentID        string    `json:"consentId"`
	Commitment       string    `json:"condition"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	DeliveryDeadline time.Time `json:"dataDeliveryDeadline"`
	OfferSequence    uint32    `json:"offerSequence,omitempty"`
	FulfillmentTx    string    `json:"fulfillmentTx,omitempty"`
}

// SettlementRecord instructs the external ledger client to finish the escrow.
type SettlementRecord struct {
	EscrowID      string
	ConsentID     string
	Payer         string
	Payee         string
	Amount        float64
	Fulfillment   string
	OfferSequence uint32
	CompletedAt   time.Time
}

// CancellationRecord instructs the external ledger client to refund the
// escrow.
type CancellationRecord struct {
	EscrowID      string
	ConsentID     string
	Payer         string
	OfferSequence uint32
	CancelledAt   time.Time
	Reason        string
}
