package engine

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SportiQue-XRPL/XRP-LEDGER/api"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg"
)

// Engine describes a startable unit of the platform: its command tree,
// lifecycle hooks, flags and HTTP routes.
type Engine struct {
	Name      string
	Cmd       *cobra.Command
	Configure func() error
	Start     func() error
	Shutdown  func() error
	FlagSet   *pflag.FlagSet
	Routes    func(router api.EchoRouter)
}

func NewSettlementEngine() *Engine {
	cl := pkg.PlatformInstance()

	return &Engine{
		Name:      "SettlementPlatform",
		Cmd:       cmd(),
		Configure: cl.Configure,
		Start:     cl.Start,
		FlagSet:   flagSet(),
		Shutdown:  cl.Shutdown,
		Routes: func(router api.EchoRouter) {
			api.RegisterHandlers(router, &api.Wrapper{Cl: cl})
		},
	}
}

func flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("settlement", pflag.ContinueOnError)
	flags.String("platformDid", "", "DID the platform issues credentials under")
	flags.Duration("deliveryWindow", pkg.DefaultDeliveryWindow, "time a requester waits for delivery before the escrow may lapse")
	return flags
}

func cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settlement-platform",
		Short: "data settlement platform commands",
	}
}
