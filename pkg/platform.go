package pkg

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/google/uuid"
	eh "github.com/looplab/eventhorizon"
	"github.com/looplab/eventhorizon/aggregatestore/events"
	"github.com/looplab/eventhorizon/commandhandler/aggregate"
	"github.com/looplab/eventhorizon/commandhandler/bus"
	"github.com/looplab/eventhorizon/eventbus/local"
	"github.com/looplab/eventhorizon/eventhandler/saga"
	"github.com/looplab/eventhorizon/eventstore/memory"

	"github.com/SportiQue-XRPL/XRP-LEDGER/audit"
	"github.com/SportiQue-XRPL/XRP-LEDGER/consent"
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain"
	domainEvents "github.com/SportiQue-XRPL/XRP-LEDGER/domain/events"
	"github.com/SportiQue-XRPL/XRP-LEDGER/domain/sagas"
	// registers the transaction aggregate with eventhorizon
	_ "github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction"
	transactionCommands "github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction/commands"
	"github.com/SportiQue-XRPL/XRP-LEDGER/escrow"
	"github.com/SportiQue-XRPL/XRP-LEDGER/ledger"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
	record_utils "github.com/SportiQue-XRPL/XRP-LEDGER/record-utils"
)

// DefaultDeliveryWindow bounds how long a subject has to deliver after
// accepting an offer.
const DefaultDeliveryWindow = 72 * time.Hour

// DefaultConsentValidity bounds how long an issued consent credential stays
// valid.
const DefaultConsentValidity = 365 * 24 * time.Hour

type PlatformConfig struct {
	PlatformDID     string
	SigningKey      *rsa.PrivateKey
	Ledger          ledger.Config
	DeliveryWindow  time.Duration
	GracePeriod     time.Duration
	ConsentValidity time.Duration
}

// PlatformClient is the operation surface of the settlement platform.
type PlatformClient interface {
	CreateDataOffer(offer DataOffer) (*DataOffer, error)
	AvailableOffers(profile SubjectProfile) []*DataOffer
	AcceptOffer(ctx context.Context, offerID string, subject SubjectProfile) (*DataTransaction, error)
	ConfirmDelivery(ctx context.Context, transactionID string) (*DataTransaction, error)
	WithdrawConsent(ctx context.Context, subjectDID DID, consentID string) error
	TransactionStatus(transactionID string) (*TransactionStatusView, error)
	Dashboard() DashboardView
}

// Platform orchestrates consent issuance, escrowed payment and audit logging
// for data transactions. Collaborators left nil before Start are replaced
// with in-memory defaults.
type Platform struct {
	Config PlatformConfig

	Consents   *consent.Service
	Escrows    *escrow.Engine
	Audit      *audit.Chain
	Ledger     ledger.Client
	Bundles    record_utils.BundleBuilder
	CommandBus eh.CommandHandler

	mu           sync.RWMutex
	offers       map[string]*DataOffer
	transactions map[string]*DataTransaction
	bundles      map[string][]byte
}

var _ PlatformClient = (*Platform)(nil)

var instance *Platform
var oneInstance sync.Once

func PlatformInstance() *Platform {
	oneInstance.Do(func() {
		instance = &Platform{}
	})
	return instance
}

func (p *Platform) Configure() error {
	if p.Config.DeliveryWindow <= 0 {
		p.Config.DeliveryWindow = DefaultDeliveryWindow
	}
	if p.Config.ConsentValidity <= 0 {
		p.Config.ConsentValidity = DefaultConsentValidity
	}
	if p.Config.PlatformDID == "" {
		p.Config.PlatformDID = "did:xrpl:sportique-platform"
	}
	if p.Config.Ledger == (ledger.Config{}) {
		p.Config.Ledger = ledger.TestnetConfig()
	}
	return nil
}

func (p *Platform) Start() error {
	if err := p.Configure(); err != nil {
		return err
	}

	if p.Config.SigningKey == nil {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return err
		}
		p.Config.SigningKey = key
	}
	if p.Consents == nil {
		p.Consents = consent.NewService(p.Config.PlatformDID, p.Config.SigningKey, consent.NewMemoryStore())
	}
	if p.Escrows == nil {
		p.Escrows = escrow.NewEngine(escrow.NewMemoryStore(), p.Config.GracePeriod)
	}
	if p.Audit == nil {
		p.Audit = audit.NewChain(p.Config.PlatformDID, nil)
	}
	if p.Ledger == nil {
		p.Ledger = ledger.NewLocalClient(p.Config.Ledger)
	}
	if p.Bundles == nil {
		p.Bundles = record_utils.FhirBundleBuilder{}
	}
	p.offers = map[string]*DataOffer{}
	p.transactions = map[string]*DataTransaction{}
	p.bundles = map[string][]byte{}

	eventstore := memory.NewEventStore()
	eventbus := local.NewEventBus(local.NewGroup())
	commandBus := bus.NewCommandHandler()
	p.CommandBus = commandBus

	eventLogger := &logger.EventLogger{}
	eventbus.AddObserver(eh.MatchAny(), eventLogger)

	aggregateStore, err := events.NewAggregateStore(eventstore, eventbus)
	if err != nil {
		return err
	}

	transactionCommandHandler, err := aggregate.NewCommandHandler(domain.TransactionAggregateType, aggregateStore)
	if err != nil {
		return err
	}
	commandHandler := eh.UseCommandHandlerMiddleware(transactionCommandHandler, eventLogger.CommandLogger)

	if commandBus.SetHandler(commandHandler, transactionCommands.BeginCmdType) != nil ||
		commandBus.SetHandler(commandHandler, transactionCommands.ConfirmDeliveryCmdType) != nil ||
		commandBus.SetHandler(commandHandler, transactionCommands.CancelCmdType) != nil ||
		commandBus.SetHandler(commandHandler, transactionCommands.ExpireCmdType) != nil {
		panic("could not set handler")
	}

	bindingSaga := saga.NewEventHandler(sagas.NewBindingSaga(), commandBus)
	eventbus.AddHandler(eh.MatchAnyEventOf(
		domainEvents.TransactionStarted,
		domainEvents.TransactionCompleted,
		domainEvents.TransactionCancelled,
		domainEvents.TransactionExpired,
	), bindingSaga)

	return nil
}

func (p *Platform) Shutdown() error {
	return nil
}

// aggregateID derives the event-sourced aggregate id of a transaction.
func aggregateID(transactionID string) uuid.UUID {
	return uuid.NewSHA1(domain.SettlementIDSpace, []byte(transactionID))
}

// dispatch forwards a command to the event-sourced side. The stores driven by
// the operations above stay authoritative, so a dispatch failure is logged
// and not propagated.
func (p *Platform) dispatch(ctx context.Context, cmd eh.Command) {
	if p.CommandBus == nil {
		return
	}
	if err := p.CommandBus.HandleCommand(ctx, cmd); err != nil {
		logger.Logger().WithError(err).Warnf("command %s not applied", cmd.CommandType())
	}
}
