package audit

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

// LedgerTransaction is an indexed external ledger transaction tied to the
// chain for cross-referencing.
type LedgerTransaction struct {
	TxHash         string                 `json:"txHash"`
	Tx             map[string]interface{} `json:"txData"`
	RecordedAt     time.Time              `json:"recordedAt"`
	RelatedEventID string                 `json:"relatedEventId,omitempty"`
}

// Check is the verification result for a single event.
type Check struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
	Issues    []string  `json:"issues"`
}

// IntegrityReport is the outcome of VerifyIntegrity for one resource.
type IntegrityReport struct {
	ResourceID string    `json:"resourceId"`
	Valid      bool      `json:"valid"`
	Reason     string    `json:"reason,omitempty"`
	EventCount int       `json:"eventCount"`
	Checks     []Check   `json:"checks"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// RecordLedgerTransaction indexes a ledger transaction observed from the
// outside and extracts audit correlation from its memos. A memo that fails
// to decode is recorded as a parse-failure note rather than discarded, to
// keep the forensic trail complete.
func (c *Chain) RecordLedgerTransaction(txHash string, tx map[string]interface{}, relatedEventID string) {
	c.IndexLedgerTransaction(txHash, tx, relatedEventID)
	c.extractFromMemos(txHash, tx)
}

// IndexLedgerTransaction stores a transaction for integrity checks without
// interpreting its memos. The platform uses this for envelopes it built
// itself, whose audit events are already appended explicitly.
func (c *Chain) IndexLedgerTransaction(txHash string, tx map[string]interface{}, relatedEventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledgerTxs[txHash] = LedgerTransaction{
		TxHash:         txHash,
		Tx:             tx,
		RecordedAt:     TimeNow(),
		RelatedEventID: relatedEventID,
	}
}

// HasLedgerTransaction reports whether the hash is indexed.
func (c *Chain) HasLedgerTransaction(txHash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ledgerTxs[txHash]
	return ok
}

// VerifyIntegrity recomputes, for every event referencing the resource in
// timestamp order, the external-reference and ordering checks. Overall
// validity is the conjunction of all per-event checks. A resource without
// events is invalid: there is no audit trail to stand on.
func (c *Chain) VerifyIntegrity(resourceID string) IntegrityReport {
	// insertion order, not re-sorted: a reordering in the stored chain must
	// surface as a violation instead of being sorted away
	var events []Event
	for _, event := range c.snapshot() {
		if event.ResourceID == resourceID {
			events = append(events, event)
		}
	}
	report := IntegrityReport{
		ResourceID: resourceID,
		EventCount: len(events),
		Checks:     []Check{},
		VerifiedAt: TimeNow(),
	}

	if len(events) == 0 {
		report.Valid = false
		report.Reason = "no audit trail"
		return report
	}

	report.Valid = true
	for i, event := range events {
		check := Check{EventID: event.ID, Timestamp: event.Timestamp, Valid: true, Issues: []string{}}

		if event.LedgerTxHash != "" && !c.HasLedgerTransaction(event.LedgerTxHash) {
			check.Valid = false
			check.Issues = append(check.Issues, "missing external reference")
		}
		if i > 0 && event.Timestamp.Before(events[i-1].Timestamp) {
			check.Valid = false
			check.Issues = append(check.Issues, "ordering violation")
		}

		if !check.Valid {
			report.Valid = false
		}
		report.Checks = append(report.Checks, check)
	}
	return report
}

func (c *Chain) extractFromMemos(txHash string, tx map[string]interface{}) {
	memos, ok := tx["Memos"].([]interface{})
	if !ok {
		return
	}
	actor, _ := tx["Account"].(string)
	if actor == "" {
		actor = "unknown"
	}

	for _, raw := range memos {
		wrapper, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		memo, ok := wrapper["Memo"].(map[string]interface{})
		if !ok {
			continue
		}
		encoded, ok := memo["MemoData"].(string)
		if !ok {
			continue
		}

		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			c.appendParseFailure(txHash, actor, "memo data is not valid hex")
			continue
		}
		fields := map[string]interface{}{}
		if err := json.Unmarshal(decoded, &fields); err != nil {
			c.appendParseFailure(txHash, actor, "memo data is not valid JSON")
			continue
		}

		consentID, _ := fields["ConsentID"].(string)
		if consentID == "" {
			continue
		}
		c.Append(KindDataDelivered, actor, "extracted_from_memo", consentID, txHash, fields)
	}
}

func (c *Chain) appendParseFailure(txHash string, actor string, detail string) {
	c.Append(KindParseFailure, actor, "extracted_from_memo", txHash, txHash, map[string]interface{}{
		"detail": detail,
	})
}
