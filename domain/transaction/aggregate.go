package transaction

import (
	"context"
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	domainEvents "github.com/SportiQue-XRPL/XRP-LEDGER/domain/events"
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction/commands"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
	"github.com/looplab/eventhorizon/aggregatestore/events"
)

func init() {
	eh.RegisterAggregate(func(id uuid.UUID) eh.Aggregate {
		return &TransactionAggregate{
			AggregateBase: events.NewAggregateBase(domain.TransactionAggregateType, id),
		}
	})
}

type TransactionAggregateState string

const TransactionOpen = TransactionAggregateState("open")
const TransactionSettled = TransactionAggregateState("settled")
const TransactionCancelled = TransactionAggregateState("cancelled")
const TransactionExpired = TransactionAggregateState("expired")

// TimeNow returns the current time. This can be overwritten during tests
var TimeNow = func() time.Time {
	return time.Now()
}

// TransactionAggregate is the consistency boundary for a single data
// settlement: one offer acceptance, one consent credential, one escrow.
type TransactionAggregate struct {
	*events.AggregateBase

	State TransactionAggregateState
}

func (a *TransactionAggregate) HandleCommand(ctx context.Context, command eh.Command) error {
	logger.Logger().Debugf("[TransactionAggregate] command: %v, %+v\n", command.CommandType(), command)

	switch cmd := command.(type) {
	case *commands.Begin:
		a.StoreEvent(domainEvents.TransactionStarted, domainEvents.TransactionData{
			ID:        cmd.ID,
			OfferID:   cmd.OfferID,
			SubjectID: cmd.SubjectID,
			ConsentID: cmd.ConsentID,
			EscrowID:  cmd.EscrowID,
			Amount:    cmd.Amount,
			Deadline:  cmd.Deadline,
		}, TimeNow())
	case *commands.ConfirmDelivery:
		if a.State != TransactionOpen {
			return domain.ErrTransactionClosed
		}
		a.StoreEvent(domainEvents.DeliveryConfirmed, domainEvents.DeliveryData{
			ConsentID:    cmd.ConsentID,
			EscrowID:     cmd.EscrowID,
			BundleDigest: cmd.BundleDigest,
			LedgerTxHash: cmd.LedgerTxHash,
		}, TimeNow())
		a.StoreEvent(domainEvents.TransactionCompleted, nil, TimeNow())
	case *commands.Cancel:
		if a.State != TransactionOpen {
			return domain.ErrTransactionClosed
		}
		a.StoreEvent(domainEvents.TransactionCancelled, domainEvents.FailedData{
			Reason: cmd.Reason,
		}, TimeNow())
	case *commands.Expire:
		if a.State != TransactionOpen {
			return domain.ErrTransactionClosed
		}
		a.StoreEvent(domainEvents.TransactionExpired, nil, TimeNow())
	default:
		return domain.ErrUnknownCommand
	}
	return nil
}

func (a *TransactionAggregate) ApplyEvent(ctx context.Context, event eh.Event) error {
	logger.Logger().Debugf("[TransactionAggregate] event: %+v\n", event)
	switch event.EventType() {
	case domainEvents.TransactionStarted:
		a.State = TransactionOpen
	case domainEvents.DeliveryConfirmed:
		// settlement lands with the completion event
	case domainEvents.TransactionCompleted:
		a.State = TransactionSettled
	case domainEvents.TransactionCancelled:
		a.State = TransactionCancelled
	case domainEvents.TransactionExpired:
		a.State = TransactionExpired
	}
	return nil
}
