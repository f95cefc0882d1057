package pkg

import (
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/audit"
	"github.com/SportiQue-XRPL/XRP-LEDGER/escrow"
)

// TransactionStatusView joins the saga status with the live state of the
// transaction's consent and escrow.
type TransactionStatusView struct {
	Transaction    DataTransaction    `json:"transaction"`
	Escrow         *escrow.StatusView `json:"escrow,omitempty"`
	ConsentValid   bool               `json:"consentValid"`
	ConsentRevoked bool               `json:"consentRevoked"`
}

// TransactionStatus resolves the full status view of a transaction.
func (p *Platform) TransactionStatus(transactionID string) (*TransactionStatusView, error) {
	transaction, err := p.Transaction(transactionID)
	if err != nil {
		return nil, err
	}
	view := &TransactionStatusView{Transaction: *transaction}

	if escrowView, err := p.Escrows.Status(transaction.EscrowID); err == nil {
		view.Escrow = escrowView
	}
	if offer, err := p.Offer(transaction.OfferID); err == nil {
		view.ConsentValid = p.Consents.VerifyByID(transaction.ConsentID, string(offer.Requester))
	}
	if credential, err := p.Consents.Get(transaction.ConsentID); err == nil {
		view.ConsentRevoked = credential.Revoked
	}
	return view, nil
}

// DashboardView summarizes platform activity.
type DashboardView struct {
	Offers        map[OfferStatus]int       `json:"offers"`
	Transactions  map[TransactionStatus]int `json:"transactions"`
	SettledVolume float64                   `json:"settledVolume"`
	Compliance    audit.ComplianceReport    `json:"compliance"`
	GeneratedAt   time.Time                 `json:"generatedAt"`
}

// Dashboard aggregates offer, transaction and compliance counters.
func (p *Platform) Dashboard() DashboardView {
	now := TimeNow()
	view := DashboardView{
		Offers:       map[OfferStatus]int{},
		Transactions: map[TransactionStatus]int{},
		GeneratedAt:  now,
	}

	p.mu.RLock()
	for _, offer := range p.offers {
		view.Offers[offer.Status]++
	}
	for _, transaction := range p.transactions {
		view.Transactions[transaction.Status]++
		if transaction.Status == TransactionCompleted {
			if offer, ok := p.offers[transaction.OfferID]; ok {
				view.SettledVolume += offer.Compensation
			}
		}
	}
	p.mu.RUnlock()

	view.Compliance = p.Audit.Report(time.Time{}, now)
	return view
}
