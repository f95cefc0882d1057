package domain

import (
	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
)

const TransactionAggregateType = eh.AggregateType("data-transaction")

// SettlementIDSpace is the uuid namespace for deriving deterministic
// aggregate ids from transaction ids, so a replayed command for the same
// settlement lands on the same aggregate.
var SettlementIDSpace = uuid.Must(uuid.Parse("6ba7b812-9dad-11d1-80b4-00c04fd430c8"))
