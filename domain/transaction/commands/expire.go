package commands

import (
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const ExpireCmdType = eh.CommandType("transaction:expire")

func init() {
	eh.RegisterCommand(func() eh.Command {
		return &Expire{}
	})
}

// Expire closes the transaction after its escrow window lapsed without
// delivery.
type Expire struct {
	ID uuid.UUID
}

func (cmd Expire) AggregateID() uuid.UUID {
	return cmd.ID
}

func (cmd Expire) AggregateType() eh.AggregateType {
	return domain.TransactionAggregateType
}

func (cmd Expire) CommandType() eh.CommandType {
	return ExpireCmdType
}
