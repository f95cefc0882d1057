package commands

import (
	"time"

	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const BeginCmdType = eh.CommandType("transaction:begin")

func init() {
	eh.RegisterCommand(func() eh.Command {
		return &Begin{}
	})
}

// Begin commands the transaction aggregate to start tracking a settlement:
// an accepted offer with its consent credential and opened escrow.
type Begin struct {
	ID uuid.UUID

	OfferID   string
	SubjectID string
	ConsentID string
	EscrowID  string
	Amount    float64
	Deadline  time.Time `eh:"optional"`
}

func (cmd Begin) AggregateID() uuid.UUID {
	return cmd.ID
}

func (cmd Begin) AggregateType() eh.AggregateType {
	return domain.TransactionAggregateType
}

func (cmd Begin) CommandType() eh.CommandType {
	return BeginCmdType
}
