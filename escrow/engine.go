package escrow

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
)

// DefaultGracePeriod is added on top of the delivery deadline before the
// payer may reclaim the funds.
const DefaultGracePeriod = 24 * time.Hour

var ErrInvalidAmount = errors.New("escrow: amount must be positive")
var ErrNotLocked = errors.New("escrow: preimage only available while locked")

// TimeNow returns the current time. This can be overwritten during tests
var TimeNow = func() time.Time {
	return time.Now().UTC()
}

// Engine drives the escrow state machine
//
//	CREATED -> LOCKED -> {FULFILLED | EXPIRED | CANCELLED}
//
// on top of a PREIMAGE-SHA-256 hash lock. The preimage is held by the engine
// on the payee's behalf and is never part of any public view.
type Engine struct {
	store Store
	grace time.Duration

	mu       sync.Mutex
	preimage map[string]string
}

// NewEngine creates an engine over the given store. A non-positive grace
// period falls back to DefaultGracePeriod.
func NewEngine(store Store, gracePeriod time.Duration) *Engine {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &Engine{store: store, grace: gracePeriod, preimage: map[string]string{}}
}

// Open creates a conditional payment bound to the consent and the content
// digest. It generates a fresh random preimage and publishes only its digest
// as the hash-lock commitment.
func (e *Engine) Open(payer string, payee string, amount float64, consentID string, contentDigest string, deliveryWindow time.Duration) (*Escrow, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("could not generate preimage: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)
	commitment := commitmentFor(secret)

	now := TimeNow()
	deadline := now.Add(deliveryWindow)
	escrow := &Escrow{
		ID:        fmt.Sprintf("escrow_%s", newID()),
		Payer:     payer,
		Payee:     payee,
		Amount:    amount,
		ConsentID: consentID,
		Condition: DeliveryCondition{
			ContentDigest:    contentDigest,
			Commitment:       commitment,
			DeliveryDeadline: deadline,
		},
		CreatedAt: now,
		ExpiresAt: deadline.Add(e.grace),
		Status:    StatusCreated,
	}

	if err := e.store.Put(escrow); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.preimage[escrow.ID] = secret
	e.mu.Unlock()

	logger.Logger().Debugf("opened escrow %s for consent %s, %f from %s to %s", escrow.ID, consentID, amount, payer, payee)
	return escrow, nil
}

// Lock marks the funds as committed once the external ledger confirms the
// EscrowCreate transaction. False when the escrow is not CREATED.
func (e *Engine) Lock(escrowID string, offerSequence uint32) bool {
	_, err := e.store.CompareAndSwapState(escrowID, StatusCreated, StatusLocked, func(es *Escrow) {
		es.OfferSequence = offerSequence
	})
	if err != nil {
		logger.Logger().Debugf("lock of %s refused: %v", escrowID, err)
		return false
	}
	return true
}

// Fulfill settles a LOCKED escrow against the delivered content. All of the
// following must hold: the expiry has not passed, the content digest equals
// the bound digest, and the revealed secret hashes to the commitment. A
// passed expiry transitions the escrow to EXPIRED as a side effect.
func (e *Engine) Fulfill(escrowID string, contentDigest string, revealedSecret string) (bool, *SettlementRecord) {
	escrow, err := e.store.Get(escrowID)
	if err != nil {
		return false, nil
	}
	if escrow.Status != StatusLocked {
		logger.Logger().Debugf("fulfill of %s refused: state %s", escrowID, escrow.Status)
		return false, nil
	}

	now := TimeNow()
	if now.After(escrow.ExpiresAt) {
		if _, err := e.store.CompareAndSwapState(escrowID, StatusLocked, StatusExpired, nil); err == nil {
			e.dropPreimage(escrowID)
		}
		return false, nil
	}
	if contentDigest != escrow.Condition.ContentDigest {
		logger.Logger().Warnf("fulfill of %s refused: content digest mismatch", escrowID)
		return false, nil
	}
	if commitmentFor(revealedSecret) != escrow.Condition.Commitment {
		logger.Logger().Warnf("fulfill of %s refused: preimage does not match commitment", escrowID)
		return false, nil
	}

	settled, err := e.store.CompareAndSwapState(escrowID, StatusLocked, StatusFulfilled, nil)
	if err != nil {
		// a concurrent transition won, never overwrite its outcome
		return false, nil
	}
	e.dropPreimage(escrowID)

	return true, &SettlementRecord{
		EscrowID:      settled.ID,
		ConsentID:     settled.ConsentID,
		Payer:         settled.Payer,
		Payee:         settled.Payee,
		Amount:        settled.Amount,
		Fulfillment:   strings.ToUpper(revealedSecret),
		OfferSequence: settled.OfferSequence,
		CompletedAt:   now,
	}
}

// Cancel refunds an escrow whose expiry has passed. Before expiry it always
// fails; on an already-terminal escrow it is a safe no-op reporting failure.
func (e *Engine) Cancel(escrowID string) (bool, *CancellationRecord) {
	escrow, err := e.store.Get(escrowID)
	if err != nil {
		return false, nil
	}
	now := TimeNow()
	if !now.After(escrow.ExpiresAt) {
		logger.Logger().Debugf("cancel of %s refused: not expired yet", escrowID)
		return false, nil
	}
	if escrow.Status.Terminal() {
		return false, nil
	}

	cancelled, err := e.store.CompareAndSwapState(escrowID, escrow.Status, StatusCancelled, nil)
	if err != nil {
		return false, nil
	}
	e.dropPreimage(escrowID)

	return true, &CancellationRecord{
		EscrowID:      cancelled.ID,
		ConsentID:     cancelled.ConsentID,
		Payer:         cancelled.Payer,
		OfferSequence: cancelled.OfferSequence,
		CancelledAt:   now,
		Reason:        "expired",
	}
}

// Abort closes a CREATED escrow whose funds never reached the ledger. The
// expiry does not apply because nothing is committed yet; a LOCKED escrow
// must go through Cancel instead.
func (e *Engine) Abort(escrowID string) (bool, *CancellationRecord) {
	aborted, err := e.store.CompareAndSwapState(escrowID, StatusCreated, StatusCancelled, nil)
	if err != nil {
		logger.Logger().Debugf("abort of %s refused: %v", escrowID, err)
		return false, nil
	}
	e.dropPreimage(escrowID)

	return true, &CancellationRecord{
		EscrowID:      aborted.ID,
		ConsentID:     aborted.ConsentID,
		Payer:         aborted.Payer,
		OfferSequence: aborted.OfferSequence,
		CancelledAt:   TimeNow(),
		Reason:        "aborted",
	}
}

// Preimage reveals the hash-lock secret for the authorized fulfiller. It is
// only available while the escrow is LOCKED; status queries never expose it.
func (e *Engine) Preimage(escrowID string) (string, error) {
	escrow, err := e.store.Get(escrowID)
	if err != nil {
		return "", err
	}
	if escrow.Status != StatusLocked {
		return "", ErrNotLocked
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	secret, ok := e.preimage[escrowID]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Status returns the public projection of an escrow.
func (e *Engine) Status(escrowID string) (*StatusView, error) {
	escrow, err := e.store.Get(escrowID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		EscrowID:         escrow.ID,
		Status:           escrow.Status,
		Payer:            escrow.Payer,
		Payee:            escrow.Payee,
		Amount:           escrow.Amount,
		ConsentID:        escrow.ConsentID,
		Commitment:       escrow.Condition.Commitment,
		CreatedAt:        escrow.CreatedAt,
		ExpiresAt:        escrow.ExpiresAt,
		DeliveryDeadline: escrow.Condition.DeliveryDeadline,
		OfferSequence:    escrow.OfferSequence,
		FulfillmentTx:    escrow.FulfillmentTx,
	}, nil
}

// Get returns the escrow entity.
func (e *Engine) Get(escrowID string) (*Escrow, error) {
	return e.store.Get(escrowID)
}

// RecordFulfillmentTx attaches the validated ledger transaction hash to a
// fulfilled escrow.
func (e *Engine) RecordFulfillmentTx(escrowID string, txHash string) error {
	_, err := e.store.CompareAndSwapState(escrowID, StatusFulfilled, StatusFulfilled, func(es *Escrow) {
		es.FulfillmentTx = txHash
	})
	return err
}

func (e *Engine) dropPreimage(escrowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.preimage, escrowID)
}

func commitmentFor(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
