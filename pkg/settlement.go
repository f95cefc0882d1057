package pkg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SportiQue-XRPL/XRP-LEDGER/audit"
	"github.com/SportiQue-XRPL/XRP-LEDGER/consent"
	transactionCommands "github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction/commands"
	"github.com/SportiQue-XRPL/XRP-LEDGER/escrow"
	"github.com/SportiQue-XRPL/XRP-LEDGER/ledger"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
	record_utils "github.com/SportiQue-XRPL/XRP-LEDGER/record-utils"
)

// AcceptOffer runs the acceptance saga for a subject: issue the consent
// credential, build the data bundle, open and lock the conditional payment.
// A failed step compensates what came before it and the offer stays pending.
func (p *Platform) AcceptOffer(ctx context.Context, offerID string, subject SubjectProfile) (*DataTransaction, error) {
	offer, err := p.Offer(offerID)
	if err != nil {
		return nil, err
	}
	now := TimeNow()
	if offer.Status != OfferPending {
		return nil, Errorf(ReasonOfferUnavailable, "offer %s is %s", offerID, offer.Status)
	}
	if !now.Before(offer.ValidUntil) {
		return nil, Errorf(ReasonExpired, "offer %s expired at %s", offerID, offer.ValidUntil)
	}
	if subject.DID == "" || subject.Address == "" {
		return nil, Errorf(ReasonConsentInvalid, "acceptance requires the subject's DID and ledger address")
	}

	terms := consent.Terms{
		Recipient: string(offer.Requester),
		Scope: consent.Scope{
			DataTypes:         offer.DataTypes,
			CollectionPeriod:  offer.CollectionPeriod,
			UsagePurpose:      offer.Purpose,
			ThirdPartySharing: offer.ThirdPartySharing,
			RetentionPeriod:   offer.RetentionPeriod,
		},
		Compensation:    offer.Compensation,
		Currency:        "XRP",
		ValidUntil:      now.Add(p.Config.ConsentValidity),
		WithdrawalRight: true,
	}
	credential, err := p.Consents.Issue(string(subject.DID), terms)
	if err != nil {
		return nil, Wrap(ReasonConsentInvalid, "could not issue consent credential", err)
	}
	p.Audit.Append(audit.KindConsentCreated, string(subject.DID), string(subject.DID), credential.ID, "", map[string]interface{}{
		"purpose":         offer.Purpose,
		"dataTypes":       offer.DataTypes,
		"retentionPeriod": offer.RetentionPeriod,
		"recipient":       string(offer.Requester),
	})

	bundleID := fmt.Sprintf("bundle_%s", uuid.New())
	payload, err := p.Bundles.BuildBundle(record_utils.BundleData{
		BundleID:  bundleID,
		SubjectID: string(subject.DID),
		ConsentID: credential.ID,
		DataTypes: offer.DataTypes,
		Start:     now,
		End:       now.Add(p.Config.DeliveryWindow),
	})
	if err != nil {
		p.compensateAcceptance(subject, credential.ID, "", "bundle build failed", err)
		return nil, Wrap(ReasonConditionMismatch, "could not build data bundle", err)
	}
	record, err := p.Bundles.BundleFromBytes(payload)
	if err != nil {
		p.compensateAcceptance(subject, credential.ID, "", "bundle verification failed", err)
		return nil, Wrap(ReasonConditionMismatch, "could not verify data bundle", err)
	}
	digest := record.Digest()

	esc, err := p.Escrows.Open(string(offer.RequesterAddress), string(subject.Address),
		offer.Compensation, credential.ID, digest, p.Config.DeliveryWindow)
	if err != nil {
		p.compensateAcceptance(subject, credential.ID, "", "escrow open failed", err)
		return nil, Wrap(ReasonEscrowState, "could not open escrow", err)
	}

	envelope := ledger.BuildEscrowCreate(esc)
	result, err := p.Ledger.Submit(ctx, envelope)
	if err != nil {
		p.compensateAcceptance(subject, credential.ID, esc.ID, "ledger submission failed", err)
		return nil, Wrap(ReasonEscrowState, "could not submit EscrowCreate", err)
	}
	if !p.Escrows.Lock(esc.ID, result.Sequence) {
		err := Errorf(ReasonEscrowState, "escrow %s left CREATED state before the lock", esc.ID)
		p.compensateAcceptance(subject, credential.ID, esc.ID, "escrow lock failed", err)
		return nil, err
	}

	createdEventID := p.Audit.Append(audit.KindEscrowCreated, p.Config.PlatformDID, string(subject.DID), esc.ID, result.TxHash, map[string]interface{}{
		"consentId":    credential.ID,
		"amount":       offer.Compensation,
		"explorerLink": p.explorerLink(result.TxHash),
	})
	p.Audit.IndexLedgerTransaction(result.TxHash, envelope.AsMap(), createdEventID)
	p.Audit.Append(audit.KindEscrowLocked, p.Config.PlatformDID, string(subject.DID), esc.ID, result.TxHash, nil)

	transaction := &DataTransaction{
		ID:            fmt.Sprintf("tx_%s", uuid.New()),
		OfferID:       offer.ID,
		SubjectID:     subject.DID,
		ConsentID:     credential.ID,
		EscrowID:      esc.ID,
		BundleID:      bundleID,
		ContentDigest: digest,
		Status:        TransactionDeliveryLocked,
		CreatedAt:     now,
	}

	p.mu.Lock()
	p.transactions[transaction.ID] = transaction
	p.bundles[bundleID] = payload
	p.offers[offer.ID].Status = OfferAccepted
	p.mu.Unlock()

	p.dispatch(ctx, &transactionCommands.Begin{
		ID:        aggregateID(transaction.ID),
		OfferID:   offer.ID,
		SubjectID: string(subject.DID),
		ConsentID: credential.ID,
		EscrowID:  esc.ID,
		Amount:    offer.Compensation,
		Deadline:  esc.Condition.DeliveryDeadline,
	})

	logger.Logger().Infof("offer %s accepted by %s, transaction %s", offer.ID, subject.DID, transaction.ID)
	copied := *transaction
	return &copied, nil
}

// compensateAcceptance rolls back a partially accepted offer: the issued
// credential is revoked, an orphaned escrow is driven to CANCELLED, and each
// rollback lands in the audit trail under its own resource.
func (p *Platform) compensateAcceptance(subject SubjectProfile, consentID string, escrowID string, step string, cause error) {
	logger.Logger().WithError(cause).Warnf("acceptance rolled back at step: %s", step)
	p.Audit.Append(audit.KindStepFailed, p.Config.PlatformDID, string(subject.DID), consentID, "", map[string]interface{}{
		"step":  step,
		"error": cause.Error(),
	})
	if escrowID != "" {
		if aborted, record := p.Escrows.Abort(escrowID); aborted {
			p.Audit.Append(audit.KindEscrowCancelled, p.Config.PlatformDID, string(subject.DID), escrowID, "", map[string]interface{}{
				"reason":    "acceptance rolled back",
				"consentId": record.ConsentID,
			})
		} else {
			logger.Logger().Warnf("orphaned escrow %s could not be aborted", escrowID)
			p.Audit.Append(audit.KindStepFailed, p.Config.PlatformDID, string(subject.DID), escrowID, "", map[string]interface{}{
				"step":  step,
				"error": "orphaned escrow could not be aborted",
			})
		}
	}
	if p.Consents.Revoke(consentID, string(subject.DID)) {
		p.Audit.Append(audit.KindConsentWithdrawn, p.Config.PlatformDID, string(subject.DID), consentID, "", map[string]interface{}{
			"reason": "compensation for failed acceptance",
		})
	}
}

// ConfirmDelivery settles a locked transaction: the consent is re-verified,
// the escrow fulfilled against the delivered content and the payment released
// on the ledger. Nothing advances if any check fails.
func (p *Platform) ConfirmDelivery(ctx context.Context, transactionID string) (*DataTransaction, error) {
	transaction, err := p.Transaction(transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.Status != TransactionDeliveryLocked {
		return nil, Errorf(ReasonEscrowState, "transaction %s is %s, not awaiting delivery", transactionID, transaction.Status)
	}
	offer, err := p.Offer(transaction.OfferID)
	if err != nil {
		return nil, err
	}

	if !p.Consents.VerifyByID(transaction.ConsentID, string(offer.Requester)) {
		return nil, Errorf(ReasonConsentInvalid, "consent %s no longer verifies for %s", transaction.ConsentID, offer.Requester)
	}

	preimage, err := p.Escrows.Preimage(transaction.EscrowID)
	if err != nil {
		return nil, Wrap(ReasonEscrowState, "escrow preimage unavailable", err)
	}
	ok, settlement := p.Escrows.Fulfill(transaction.EscrowID, transaction.ContentDigest, preimage)
	if !ok {
		return nil, Errorf(ReasonConditionMismatch, "escrow %s refused fulfillment", transaction.EscrowID)
	}

	envelope := ledger.BuildEscrowFinish(settlement)
	result, err := p.Ledger.Submit(ctx, envelope)
	if err != nil {
		// funds are settled internally; the finish can be resubmitted later
		logger.Logger().WithError(err).Errorf("EscrowFinish for %s not validated", transaction.EscrowID)
	} else {
		p.Escrows.RecordFulfillmentTx(transaction.EscrowID, result.TxHash)
	}

	txHash := ""
	if err == nil {
		txHash = result.TxHash
	}
	deliveredEventID := p.Audit.Append(audit.KindDataDelivered, string(transaction.SubjectID), string(transaction.SubjectID), transaction.ConsentID, txHash, map[string]interface{}{
		"escrowId":     transaction.EscrowID,
		"bundleDigest": transaction.ContentDigest,
	})
	if txHash != "" {
		p.Audit.IndexLedgerTransaction(txHash, envelope.AsMap(), deliveredEventID)
	}
	p.Audit.Append(audit.KindPaymentCompleted, string(offer.Requester), string(transaction.SubjectID), transaction.EscrowID, txHash, map[string]interface{}{
		"amount":    settlement.Amount,
		"consentId": transaction.ConsentID,
	})
	p.Audit.RecordAccess(transaction.ConsentID, string(offer.Requester), string(transaction.SubjectID),
		offer.DataTypes, offer.Purpose, "", "")

	completedAt := settlement.CompletedAt
	p.mu.Lock()
	stored := p.transactions[transactionID]
	stored.Status = TransactionCompleted
	stored.CompletedAt = &completedAt
	p.offers[transaction.OfferID].Status = OfferCompleted
	copied := *stored
	p.mu.Unlock()

	p.dispatch(ctx, &transactionCommands.ConfirmDelivery{
		ID:           aggregateID(transactionID),
		ConsentID:    transaction.ConsentID,
		EscrowID:     transaction.EscrowID,
		BundleDigest: transaction.ContentDigest,
		LedgerTxHash: txHash,
	})

	logger.Logger().Infof("transaction %s completed, %f XRP released", transactionID, settlement.Amount)
	return &copied, nil
}

// WithdrawConsent revokes the subject's consent and closes every transaction
// still bound to it. The escrow is only cancellable after its window lapsed;
// until then the transaction stays open with a revoked consent, which blocks
// any future delivery.
func (p *Platform) WithdrawConsent(ctx context.Context, subjectDID DID, consentID string) error {
	if !p.Consents.Revoke(consentID, string(subjectDID)) {
		return Errorf(ReasonConsentInvalid, "consent %s could not be revoked by %s", consentID, subjectDID)
	}
	p.Audit.Append(audit.KindConsentWithdrawn, string(subjectDID), string(subjectDID), consentID, "", map[string]interface{}{
		"reason": "subject withdrawal",
	})

	for _, transaction := range p.transactionsByConsent(consentID) {
		if transaction.Status.Terminal() {
			continue
		}
		cancelled, record := p.Escrows.Cancel(transaction.EscrowID)
		if !cancelled {
			logger.Logger().Infof("escrow %s not yet cancellable, transaction %s stays open", transaction.EscrowID, transaction.ID)
			continue
		}
		p.refundAndClose(ctx, transaction.ID, record, TransactionCancelled, "consent withdrawn")
	}
	return nil
}

// ExpireOverdue sweeps open transactions whose escrow window lapsed and
// refunds the payer. Returns how many transactions were closed.
func (p *Platform) ExpireOverdue(ctx context.Context) int {
	closed := 0
	for _, transaction := range p.openTransactions() {
		cancelled, record := p.Escrows.Cancel(transaction.EscrowID)
		if !cancelled {
			continue
		}
		p.refundAndClose(ctx, transaction.ID, record, TransactionExpired, "delivery window lapsed")
		closed++
	}
	return closed
}

func (p *Platform) refundAndClose(ctx context.Context, transactionID string, record *escrow.CancellationRecord, status TransactionStatus, reason string) {
	envelope := ledger.BuildEscrowCancel(record)
	result, err := p.Ledger.Submit(ctx, envelope)
	txHash := ""
	if err != nil {
		logger.Logger().WithError(err).Errorf("EscrowCancel for %s not validated", record.EscrowID)
	} else {
		txHash = result.TxHash
	}

	metadata := map[string]interface{}{
		"reason":    reason,
		"consentId": record.ConsentID,
	}
	if txHash != "" {
		metadata["explorerLink"] = p.explorerLink(txHash)
	}
	eventID := p.Audit.Append(audit.KindEscrowCancelled, p.Config.PlatformDID, "", record.EscrowID, txHash, metadata)
	if txHash != "" {
		p.Audit.IndexLedgerTransaction(txHash, envelope.AsMap(), eventID)
	}

	p.mu.Lock()
	stored, ok := p.transactions[transactionID]
	if ok && !stored.Status.Terminal() {
		stored.Status = status
	}
	p.mu.Unlock()

	if status == TransactionExpired {
		p.dispatch(ctx, &transactionCommands.Expire{ID: aggregateID(transactionID)})
	} else {
		p.dispatch(ctx, &transactionCommands.Cancel{ID: aggregateID(transactionID), Reason: reason})
	}
}

// Transaction returns a copy of the stored transaction.
func (p *Platform) Transaction(transactionID string) (*DataTransaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	transaction, ok := p.transactions[transactionID]
	if !ok {
		return nil, Errorf(ReasonNotFound, "no transaction with id %s", transactionID)
	}
	copied := *transaction
	return &copied, nil
}

// Bundle hands out the deliverable content of a completed transaction and
// logs the access under its consent.
func (p *Platform) Bundle(transactionID string, accessor DID) ([]byte, error) {
	transaction, err := p.Transaction(transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.Status != TransactionCompleted {
		return nil, Errorf(ReasonEscrowState, "bundle of %s is not released, transaction is %s", transactionID, transaction.Status)
	}
	offer, err := p.Offer(transaction.OfferID)
	if err != nil {
		return nil, err
	}
	if accessor != offer.Requester {
		return nil, Errorf(ReasonConsentInvalid, "%s is not the consented recipient", accessor)
	}

	p.mu.RLock()
	payload, ok := p.bundles[transaction.BundleID]
	p.mu.RUnlock()
	if !ok {
		return nil, Errorf(ReasonNotFound, "bundle %s is gone", transaction.BundleID)
	}

	p.Audit.RecordAccess(transaction.ConsentID, string(accessor), string(transaction.SubjectID),
		offer.DataTypes, offer.Purpose, "", "")
	return payload, nil
}

// explorerLink renders where a validated transaction can be inspected on the
// configured network's explorer.
func (p *Platform) explorerLink(txHash string) string {
	if p.Config.Ledger.ExplorerURL == "" {
		return txHash
	}
	return fmt.Sprintf("%s/transactions/%s", p.Config.Ledger.ExplorerURL, txHash)
}

func (p *Platform) transactionsByConsent(consentID string) []*DataTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*DataTransaction
	for _, transaction := range p.transactions {
		if transaction.ConsentID == consentID {
			copied := *transaction
			out = append(out, &copied)
		}
	}
	return out
}

func (p *Platform) openTransactions() []*DataTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*DataTransaction
	for _, transaction := range p.transactions {
		if !transaction.Status.Terminal() {
			copied := *transaction
			out = append(out, &copied)
		}
	}
	return out
}
