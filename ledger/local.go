package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// LocalClient is an in-process Client that validates every envelope
// immediately. It exists for demos and tests that need the full settlement
// flow without an XRPL connection. Hashes are derived from the envelope
// content so repeated submissions are distinguishable.
type LocalClient struct {
	Config Config

	mu        sync.Mutex
	sequence  uint32
	Submitted []Envelope
}

// NewLocalClient takes the network config so an envelope accepted here names
// the same endpoints a real client would have been dialed with.
func NewLocalClient(config Config) *LocalClient {
	return &LocalClient{Config: config, sequence: 1000}
}

func (c *LocalClient) Submit(_ context.Context, envelope Envelope) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sequence++
	c.Submitted = append(c.Submitted, envelope)

	raw, err := json.Marshal(envelope)
	if err != nil {
		return Result{}, err
	}
	sum := sha256.Sum256(append(raw, byte(c.sequence), byte(c.sequence>>8)))
	return Result{
		TxHash:    strings.ToUpper(fmt.Sprintf("%x", sum)),
		Validated: true,
		Sequence:  c.sequence,
	}, nil
}
