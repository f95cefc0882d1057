package commands

import (
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const CancelCmdType = eh.CommandType("transaction:cancel")

func init() {
	eh.RegisterCommand(func() eh.Command {
		return &Cancel{}
	})
}

// Cancel closes the transaction without settlement, either because consent
// was withdrawn or because the escrow could not be kept alive.
type Cancel struct {
	ID     uuid.UUID
	Reason string
}

func (cmd Cancel) AggregateID() uuid.UUID {
	return cmd.ID
}

func (cmd Cancel) AggregateType() eh.AggregateType {
	return domain.TransactionAggregateType
}

func (cmd Cancel) CommandType() eh.CommandType {
	return CancelCmdType
}
