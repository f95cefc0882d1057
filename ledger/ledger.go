// Package ledger prepares XRPL transaction envelopes for the escrow
// lifecycle and defines the interface of the external ledger client. The
// client itself (wallet custody, submission, consensus) is out of scope and
// lives behind the Client interface.
package ledger

import (
	"context"
)

// Config points the platform at an XRPL cluster. Which network to use is
// decided by the caller, never inside the core.
type Config struct {
	NetworkURL  string
	ExplorerURL string
}

// TestnetConfig returns the XRPL testnet endpoints.
func TestnetConfig() Config {
	return Config{
		NetworkURL:  "wss://s.altnet.rippletest.net:51233",
		ExplorerURL: "https://testnet.xrpl.org",
	}
}

// MainnetConfig returns the XRPL mainnet endpoints.
func MainnetConfig() Config {
	return Config{
		NetworkURL:  "wss://xrplcluster.com",
		ExplorerURL: "https://xrpl.org",
	}
}

// Result is what the ledger reports back for a submitted envelope.
type Result struct {
	TxHash    string
	Validated bool
	Sequence  uint32
}

// Client accepts prepared transaction envelopes and returns the resulting
// transaction hash plus validation status.
type Client interface {
	Submit(ctx context.Context, envelope Envelope) (Result, error)
}
