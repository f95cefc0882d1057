package audit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
)

// Kind enumerates the audit event kinds.
type Kind string

const (
	KindConsentCreated   = Kind("consent_created")
	KindConsentWithdrawn = Kind("consent_withdrawn")
	KindDataRequested    = Kind("data_requested")
	KindEscrowCreated    = Kind("escrow_created")
	KindEscrowLocked     = Kind("escrow_locked")
	KindEscrowCancelled  = Kind("escrow_cancelled")
	KindDataDelivered    = Kind("data_delivered")
	KindPaymentCompleted = Kind("payment_completed")
	KindAccessGranted    = Kind("access_granted")
	KindAccessRevoked    = Kind("access_revoked")
	KindComplianceCheck  = Kind("compliance_check")
	KindStepFailed       = Kind("step_failed")
	KindParseFailure     = Kind("memo_parse_failure")
)

// ComplianceStatus is the computed compliance flag of an event.
type ComplianceStatus string

const (
	Compliant    = ComplianceStatus("COMPLIANT")
	NonCompliant = ComplianceStatus("NON_COMPLIANT")
)

// Event is one immutable entry of the audit chain.
type Event struct {
	ID           string                 `json:"eventId"`
	Kind         Kind                   `json:"eventType"`
	Timestamp    time.Time              `json:"timestamp"`
	Actor        string                 `json:"actor"`
	Subject      string                 `json:"subject"`
	ResourceID   string                 `json:"resourceId"`
	LedgerTxHash string                 `json:"ledgerTxHash,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Compliance   ComplianceStatus       `json:"complianceStatus"`
}

// AccessLog records one data access under a consent.
type AccessLog struct {
	AccessID    string    `json:"accessId"`
	ConsentID   string    `json:"consentId"`
	Accessor    string    `json:"accessor"`
	DataSubject string    `json:"dataSubject"`
	DataTypes   []string  `json:"dataTypes"`
	AccessTime  time.Time `json:"accessTime"`
	Purpose     string    `json:"accessPurpose"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
}

// Filter selects events for Query. Zero values match everything.
type Filter struct {
	Subject    string
	ResourceID string
	Start      *time.Time
	End        *time.Time
}

// TimeNow returns the current time. This can be overwritten during tests
var TimeNow = func() time.Time {
	return time.Now().UTC()
}

// Chain is the append-only audit log. Appends are serialized to preserve the
// per-resource ordering invariant; queries work on snapshots and never block
// appends for long.
type Chain struct {
	platformDID string
	rules       RuleSet

	mu         sync.RWMutex
	events     []Event
	accessLogs []AccessLog
	ledgerTxs  map[string]LedgerTransaction
}

// NewChain creates an audit chain flagged with the platform's DID. A nil
// rule set falls back to DefaultRules.
func NewChain(platformDID string, rules RuleSet) *Chain {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Chain{
		platformDID: platformDID,
		rules:       rules,
		ledgerTxs:   map[string]LedgerTransaction{},
	}
}

// Append adds an event. Timestamps are monotonically non-decreasing, ties
// are broken by insertion order. Prior events are never mutated.
func (c *Chain) Append(kind Kind, actor string, subject string, resourceID string, ledgerTxHash string, metadata map[string]interface{}) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	timestamp := TimeNow()
	if n := len(c.events); n > 0 && timestamp.Before(c.events[n-1].Timestamp) {
		timestamp = c.events[n-1].Timestamp
	}

	event := Event{
		ID:           fmt.Sprintf("audit_%s", newID()),
		Kind:         kind,
		Timestamp:    timestamp,
		Actor:        actor,
		Subject:      subject,
		ResourceID:   resourceID,
		LedgerTxHash: ledgerTxHash,
		Metadata:     metadata,
	}
	event.Compliance = c.rules.Evaluate(event)

	c.events = append(c.events, event)
	logger.Logger().Debugf("audit %s: %s on %s by %s", event.ID, kind, resourceID, actor)
	return event.ID
}

// Query returns the matching events in non-decreasing timestamp order. The
// chain being append-only, re-invoking with the same filter yields a
// repeatable view.
func (c *Chain) Query(filter Filter) []Event {
	events := c.snapshot()

	out := make([]Event, 0, len(events))
	for _, event := range events {
		if filter.Subject != "" && event.Subject != filter.Subject {
			continue
		}
		if filter.ResourceID != "" && event.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Start != nil && event.Timestamp.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && event.Timestamp.After(*filter.End) {
			continue
		}
		out = append(out, event)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// RecordAccess writes a data-access log entry and mirrors it as an
// ACCESS_GRANTED event on the chain.
func (c *Chain) RecordAccess(consentID string, accessor string, dataSubject string, dataTypes []string, purpose string, ipAddress string, userAgent string) string {
	entry := AccessLog{
		AccessID:    fmt.Sprintf("access_%s", newID()),
		ConsentID:   consentID,
		Accessor:    accessor,
		DataSubject: dataSubject,
		DataTypes:   dataTypes,
		AccessTime:  TimeNow(),
		Purpose:     purpose,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	}

	c.mu.Lock()
	c.accessLogs = append(c.accessLogs, entry)
	c.mu.Unlock()

	c.Append(KindAccessGranted, accessor, dataSubject, consentID, "", map[string]interface{}{
		"accessId":  entry.AccessID,
		"dataTypes": dataTypes,
		"purpose":   purpose,
	})
	return entry.AccessID
}

// AccessHistory lists a subject's access log entries over the trailing day
// window, newest first.
func (c *Chain) AccessHistory(dataSubject string, days int) []AccessLog {
	cutoff := TimeNow().AddDate(0, 0, -days)

	c.mu.RLock()
	logs := make([]AccessLog, len(c.accessLogs))
	copy(logs, c.accessLogs)
	c.mu.RUnlock()

	out := make([]AccessLog, 0, len(logs))
	for _, entry := range logs {
		if entry.DataSubject == dataSubject && !entry.AccessTime.Before(cutoff) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AccessTime.After(out[j].AccessTime)
	})
	return out
}

func (c *Chain) snapshot() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]Event, len(c.events))
	copy(events, c.events)
	return events
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
