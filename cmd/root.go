package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SportiQue-XRPL/XRP-LEDGER/api"
	engine2 "github.com/SportiQue-XRPL/XRP-LEDGER/engine"
	"github.com/SportiQue-XRPL/XRP-LEDGER/ledger"
	pkg2 "github.com/SportiQue-XRPL/XRP-LEDGER/pkg"
)

const confPort = "port"
const confInterface = "interface"
const confMainnet = "mainnet"

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the settlement platform as a standalone api server",
	Run: func(cmd *cobra.Command, args []string) {
		server := echo.New()
		server.HideBanner = true
		server.Use(middleware.Logger())
		instance := pkg2.PlatformInstance()
		api.RegisterHandlers(server, &api.Wrapper{Cl: instance})
		addr := fmt.Sprintf("%s:%d", serverInterface, serverPort)
		server.Logger.Fatal(server.Start(addr))
	},
}

var demoCommand = &cobra.Command{
	Use:   "demo",
	Short: "Run a full offer-to-settlement walkthrough against the in-process ledger",
	Run: func(cmd *cobra.Command, args []string) {
		instance := pkg2.PlatformInstance()

		offer, err := instance.CreateDataOffer(pkg2.DataOffer{
			Requester:        "did:xrpl:pharma-research",
			RequesterName:    "Pharma Research Lab",
			RequesterAddress: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			DataTypes:        []string{"heart_rate", "steps", "sleep"},
			Purpose:          "diabetes_research",
			Compensation:     50,
			CollectionPeriod: "3months",
			RetentionPeriod:  "5years",
		})
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("offer published: %s", offer.ID)

		transaction, err := instance.AcceptOffer(context.Background(), offer.ID, pkg2.SubjectProfile{
			DID:     "did:xrpl:subject123",
			Address: "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe",
			Age:     34,
		})
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("offer accepted, escrow %s locks %.0f XRP until delivery", transaction.EscrowID, offer.Compensation)

		settled, err := instance.ConfirmDelivery(context.Background(), transaction.ID)
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("delivery confirmed, transaction %s settled at %s", settled.ID, settled.CompletedAt)

		dashboard := instance.Dashboard()
		logrus.Infof("settled volume: %.0f XRP across %d completed transactions",
			dashboard.SettledVolume, dashboard.Transactions[pkg2.TransactionCompleted])
	},
}

var (
	serverInterface string
	serverPort      int
	useMainnet      bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCommand.
func Execute() {
	settlementEngine := engine2.NewSettlementEngine()

	rootCommand := settlementEngine.Cmd
	rootCommand.PersistentFlags().AddFlagSet(settlementEngine.FlagSet)
	rootCommand.PersistentFlags().BoolVar(&useMainnet, confMainnet, false, "Target the live XRP Ledger instead of the testnet")
	serveCommand.Flags().StringVar(&serverInterface, confInterface, "localhost", "Server interface binding")
	serveCommand.Flags().IntVarP(&serverPort, confPort, "p", 1324, "Server listen port")
	rootCommand.AddCommand(serveCommand)
	rootCommand.AddCommand(demoCommand)

	rootCommand.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		instance := pkg2.PlatformInstance()
		if useMainnet {
			instance.Config.Ledger = ledger.MainnetConfig()
		} else {
			instance.Config.Ledger = ledger.TestnetConfig()
		}
		if did, err := cmd.Flags().GetString("platformDid"); err == nil && did != "" {
			instance.Config.PlatformDID = did
		}
		if window, err := cmd.Flags().GetDuration("deliveryWindow"); err == nil && window > 0 {
			instance.Config.DeliveryWindow = window
		}
		if err := settlementEngine.Configure(); err != nil {
			panic(err)
		}
		if err := settlementEngine.Start(); err != nil {
			panic(err)
		}
	}

	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := settlementEngine.Shutdown(); err != nil {
		logrus.Error(err)
	}
}
