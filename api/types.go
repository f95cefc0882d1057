package api

import (
	"time"
)

// CreateOfferRequest publishes a data offer.
type CreateOfferRequest struct {
	RequesterDid      string                 `json:"requesterDid"`
	RequesterName     string                 `json:"requesterName,omitempty"`
	RequesterAddress  string                 `json:"requesterAddress"`
	DataTypes         []string               `json:"dataTypes"`
	Purpose           string                 `json:"purpose"`
	Compensation      float64                `json:"compensation"`
	CollectionPeriod  string                 `json:"collectionPeriod,omitempty"`
	RetentionPeriod   string                 `json:"retentionPeriod,omitempty"`
	ThirdPartySharing bool                   `json:"thirdPartySharing,omitempty"`
	ValidUntil        *time.Time             `json:"validUntil,omitempty"`
	TargetCriteria    map[string]interface{} `json:"targetCriteria,omitempty"`
}

// SubjectParams identifies and profiles the acting subject.
type SubjectParams struct {
	SubjectDid     string   `json:"subjectDid"`
	SubjectAddress string   `json:"subjectAddress"`
	Age            int      `json:"age,omitempty"`
	Conditions     []string `json:"conditions,omitempty"`
}

// AcceptOfferRequest accepts an offer on behalf of a subject.
type AcceptOfferRequest struct {
	SubjectParams
}

// WithdrawConsentRequest revokes a consent credential.
type WithdrawConsentRequest struct {
	SubjectDid string `json:"subjectDid"`
}

// OfferResponse is the public form of a stored offer.
type OfferResponse struct {
	OfferId          string    `json:"offerId"`
	RequesterDid     string    `json:"requesterDid"`
	RequesterName    string    `json:"requesterName,omitempty"`
	DataTypes        []string  `json:"dataTypes"`
	Purpose          string    `json:"purpose"`
	Compensation     float64   `json:"compensation"`
	CollectionPeriod string    `json:"collectionPeriod,omitempty"`
	RetentionPeriod  string    `json:"retentionPeriod,omitempty"`
	Status           string    `json:"status"`
	ValidUntil       time.Time `json:"validUntil"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TransactionResponse is the public form of a data transaction.
type TransactionResponse struct {
	TransactionId string     `json:"transactionId"`
	OfferId       string     `json:"offerId"`
	SubjectDid    string     `json:"subjectDid"`
	ConsentId     string     `json:"consentId"`
	EscrowId      string     `json:"escrowId"`
	ContentDigest string     `json:"contentDigest"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}
