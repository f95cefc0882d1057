package audit

import (
	"encoding/json"
	"sort"
	"time"
)

// ExportDocument is the archival/compliance submission format.
type ExportDocument struct {
	PlatformDID        string              `json:"platformDid"`
	ExportedAt         time.Time           `json:"exportedAt"`
	AuditEvents        []Event             `json:"auditEvents"`
	AccessLogs         []AccessLog         `json:"accessLogs"`
	LedgerTransactions []LedgerTransaction `json:"ledgerTransactions,omitempty"`
}

// Export serializes the full chain deterministically: events in chain order,
// access logs in insertion order, ledger transactions sorted by hash.
func (c *Chain) Export(includeLedgerTxs bool) ([]byte, error) {
	c.mu.RLock()
	document := ExportDocument{
		PlatformDID: c.platformDID,
		ExportedAt:  TimeNow(),
		AuditEvents: make([]Event, len(c.events)),
		AccessLogs:  make([]AccessLog, len(c.accessLogs)),
	}
	copy(document.AuditEvents, c.events)
	copy(document.AccessLogs, c.accessLogs)

	if includeLedgerTxs {
		for _, tx := range c.ledgerTxs {
			document.LedgerTransactions = append(document.LedgerTransactions, tx)
		}
	}
	c.mu.RUnlock()

	sort.Slice(document.LedgerTransactions, func(i, j int) bool {
		return document.LedgerTransactions[i].TxHash < document.LedgerTransactions[j].TxHash
	})
	return json.Marshal(document)
}
