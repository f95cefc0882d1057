package pkg

import (
	"time"
)

// DID identifies a party on the platform (subjects, requesters, the platform
// itself). Ledger addresses are a separate concern, see Address.
type DID string

// Address is an XRPL account address.
type Address string

// OfferStatus is the lifecycle state of a data offer.
type OfferStatus string

const (
	OfferPending   = OfferStatus("pending")
	OfferAccepted  = OfferStatus("accepted")
	OfferRejected  = OfferStatus("rejected")
	OfferCompleted = OfferStatus("completed")
	OfferExpired   = OfferStatus("expired")
)

// DataOffer is a requester's standing offer to compensate subjects for
// records matching the offer terms.
type DataOffer struct {
	ID                string
	Requester         DID
	RequesterName     string
	RequesterAddress  Address
	DataTypes         []string
	Purpose           string
	Compensation      float64
	CollectionPeriod  string
	RetentionPeriod   string
	ThirdPartySharing bool
	ValidUntil        time.Time
	CreatedAt         time.Time
	Status            OfferStatus
	TargetCriteria    map[string]interface{}
}

// TransactionStatus is the saga state of a data transaction. The underlying
// consent and escrow entities remain authoritative for their own domains;
// this status only tracks how far the saga has progressed.
type TransactionStatus string

const (
	TransactionOfferPending   = TransactionStatus("offer-pending")
	TransactionOfferAccepted  = TransactionStatus("offer-accepted")
	TransactionConsentGiven   = TransactionStatus("consent-given")
	TransactionDeliveryLocked = TransactionStatus("delivery-locked")
	TransactionCompleted      = TransactionStatus("completed")
	TransactionCancelled      = TransactionStatus("cancelled")
	TransactionExpired        = TransactionStatus("expired")
)

// Terminal reports whether no further saga progress is possible.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionCompleted, TransactionCancelled, TransactionExpired:
		return true
	case TransactionOfferPending, TransactionOfferAccepted, TransactionConsentGiven, TransactionDeliveryLocked:
		return false
	}
	return false
}

// DataTransaction references the consent, escrow and content produced for an
// accepted offer. It owns none of their lifecycles.
type DataTransaction struct {
	ID            string
	OfferID       string
	SubjectID     DID
	ConsentID     string
	EscrowID      string
	BundleID      string
	ContentDigest string
	Status        TransactionStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// TimeNow returns the current time. This can be overwritten during tests
var TimeNow = func() time.Time {
	return time.Now().UTC()
}
