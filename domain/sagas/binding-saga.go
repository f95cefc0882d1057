package sagas

import (
	"context"

	"github.com/SportiQue-XRPL/XRP-LEDGER/domain/events"
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction/commands"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
	"github.com/looplab/eventhorizon/eventhandler/saga"
)

// BindingSaga guards the one-live-escrow-per-consent rule across
// transactions. A second settlement started for a consent that already has a
// live escrow gets cancelled. Bindings are freed when their transaction
// reaches any terminal state.
type BindingSaga struct {
	boundConsents map[string]uuid.UUID
	byAggregate   map[uuid.UUID]string
}

func NewBindingSaga() *BindingSaga {
	return &BindingSaga{
		boundConsents: map[string]uuid.UUID{},
		byAggregate:   map[uuid.UUID]string{},
	}
}

const BindingSagaType saga.Type = "ConsentBindingSaga"

func (s BindingSaga) SagaType() saga.Type {
	return BindingSagaType
}

func (s *BindingSaga) RunSaga(ctx context.Context, event eh.Event) []eh.Command {
	logger.Logger().Debugf("[BindingSaga] event: %+v\n", event)
	switch event.EventType() {
	case events.TransactionStarted:
		data, ok := transactionData(event)
		if !ok {
			return nil
		}
		if holder, bound := s.boundConsents[data.ConsentID]; bound && holder != event.AggregateID() {
			logger.Logger().Warnf("[BindingSaga] consent %s already bound to a live escrow", data.ConsentID)
			return []eh.Command{&commands.Cancel{
				ID:     event.AggregateID(),
				Reason: "consent already bound to a live escrow",
			}}
		}
		s.boundConsents[data.ConsentID] = event.AggregateID()
		s.byAggregate[event.AggregateID()] = data.ConsentID
	case events.TransactionCompleted, events.TransactionCancelled, events.TransactionExpired:
		if consentID, known := s.byAggregate[event.AggregateID()]; known {
			delete(s.boundConsents, consentID)
			delete(s.byAggregate, event.AggregateID())
		}
	}
	return nil
}

func transactionData(event eh.Event) (events.TransactionData, bool) {
	switch data := event.Data().(type) {
	case events.TransactionData:
		return data, true
	case *events.TransactionData:
		return *data, true
	}
	return events.TransactionData{}, false
}
