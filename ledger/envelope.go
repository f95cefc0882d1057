package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/escrow"
)

// rippleEpochOffset converts between the Unix epoch and the XRPL epoch
// (2000-01-01T00:00:00Z).
const rippleEpochOffset = 946684800

const dropsPerXRP = 1000000

// Memo type tags used by the platform so its transactions can be recognized
// on-ledger and their memos extracted back into the audit trail.
const (
	MemoTypeEscrow   = "SportiQueEscrow"
	MemoTypeComplete = "SportiQueComplete"
	MemoTypeCancel   = "SportiQueCancel"
)

// digestFingerprintLen is how much of the content digest travels in the
// on-ledger memo. The full digest stays in the escrow condition.
const digestFingerprintLen = 32

// Envelope is a prepared XRPL transaction in its JSON object form.
type Envelope map[string]interface{}

// XRPToDrops renders an XRP amount in drops, the integer unit the ledger
// expects.
func XRPToDrops(amount float64) string {
	return fmt.Sprintf("%d", int64(amount*dropsPerXRP))
}

// RippleTime converts a wall-clock time to seconds since the XRPL epoch.
func RippleTime(t time.Time) int64 {
	return t.Unix() - rippleEpochOffset
}

// BuildEscrowCreate prepares the EscrowCreate envelope for a freshly opened
// escrow. The envelope carries the hash-lock commitment as the crypto
// condition and a memo binding the on-ledger object to the consent record.
func BuildEscrowCreate(e *escrow.Escrow) Envelope {
	memo := map[string]interface{}{
		"EscrowID":  e.ID,
		"ConsentID": e.ConsentID,
		"DataHash":  fingerprint(e.Condition.ContentDigest),
		"Amount":    e.Amount,
		"Purpose":   "HealthDataPayment",
	}
	return Envelope{
		"TransactionType": "EscrowCreate",
		"Account":         e.Payer,
		"Destination":     e.Payee,
		"Amount":          XRPToDrops(e.Amount),
		"FinishAfter":     RippleTime(e.ExpiresAt),
		"Condition":       e.Condition.Commitment,
		"Memos":           memos(MemoTypeEscrow, memo),
	}
}

// BuildEscrowFinish prepares the EscrowFinish envelope that releases payment
// for a settled escrow. The payee submits it, revealing the fulfillment.
func BuildEscrowFinish(record *escrow.SettlementRecord) Envelope {
	memo := map[string]interface{}{
		"EscrowID":    record.EscrowID,
		"ConsentID":   record.ConsentID,
		"CompletedAt": record.CompletedAt.Format(time.RFC3339),
	}
	return Envelope{
		"TransactionType": "EscrowFinish",
		"Account":         record.Payee,
		"Owner":           record.Payer,
		"OfferSequence":   record.OfferSequence,
		"Fulfillment":     record.Fulfillment,
		"Memos":           memos(MemoTypeComplete, memo),
	}
}

// BuildEscrowCancel prepares the EscrowCancel envelope returning funds to the
// payer after the escrow window has lapsed.
func BuildEscrowCancel(record *escrow.CancellationRecord) Envelope {
	memo := map[string]interface{}{
		"EscrowID":    record.EscrowID,
		"CancelledAt": record.CancelledAt.Format(time.RFC3339),
		"Reason":      record.Reason,
	}
	return Envelope{
		"TransactionType": "EscrowCancel",
		"Account":         record.Payer,
		"Owner":           record.Payer,
		"OfferSequence":   record.OfferSequence,
		"Memos":           memos(MemoTypeCancel, memo),
	}
}

// AsMap exposes the envelope as a plain map, the form the audit chain records
// ledger transactions in.
func (e Envelope) AsMap() map[string]interface{} {
	out := make(map[string]interface{}, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func memos(memoType string, data map[string]interface{}) []interface{} {
	raw, _ := json.Marshal(data)
	return []interface{}{
		map[string]interface{}{
			"Memo": map[string]interface{}{
				"MemoType": hex.EncodeToString([]byte(memoType)),
				"MemoData": hex.EncodeToString(raw),
			},
		},
	}
}

func fingerprint(digest string) string {
	if len(digest) <= digestFingerprintLen {
		return digest
	}
	return digest[:digestFingerprintLen]
}
