package commands

import (
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const ConfirmDeliveryCmdType = eh.CommandType("transaction:confirm-delivery")

func init() {
	eh.RegisterCommand(func() eh.Command {
		return &ConfirmDelivery{}
	})
}

// ConfirmDelivery records that the data bundle reached the requester and the
// escrow settled against its condition.
type ConfirmDelivery struct {
	ID uuid.UUID

	ConsentID    string
	EscrowID     string
	BundleDigest string
	LedgerTxHash string `eh:"optional"`
}

func (cmd ConfirmDelivery) AggregateID() uuid.UUID {
	return cmd.ID
}

func (cmd ConfirmDelivery) AggregateType() eh.AggregateType {
	return domain.TransactionAggregateType
}

func (cmd ConfirmDelivery) CommandType() eh.CommandType {
	return ConfirmDeliveryCmdType
}
