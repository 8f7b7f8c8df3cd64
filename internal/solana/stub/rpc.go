package stub

import (
	"context"
	"errors"
	"sync"

	"mempool-flow/internal/domain"
)

// ErrNotFound is returned by GetSlot when no slot has been set.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Simulation results are
// keyed by the raw wire bytes of the transaction.
type RPCClient struct {
	// Default is returned for transactions with no registered result.
	// Nil means unregistered transactions simulate to nothing.
	Default *domain.BalanceSnapshot
	Slot    int64

	mu        sync.Mutex
	snapshots map[string]*domain.BalanceSnapshot
	errs      map[string]error
	simulated []string
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		snapshots: make(map[string]*domain.BalanceSnapshot),
		errs:      make(map[string]error),
	}
}

// SimulateTransaction returns the registered error or snapshot for raw.
func (c *RPCClient) SimulateTransaction(_ context.Context, raw []byte) (*domain.BalanceSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := string(raw)
	c.simulated = append(c.simulated, key)

	if err, ok := c.errs[key]; ok {
		return nil, err
	}
	if snap, ok := c.snapshots[key]; ok {
		return snap, nil
	}
	return c.Default, nil
}

// GetSlot returns Slot, or ErrNotFound when it is zero.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	if c.Slot == 0 {
		return 0, ErrNotFound
	}
	return c.Slot, nil
}

// AddSnapshot registers the simulation result for raw. A nil snapshot makes
// the simulation come back empty.
func (c *RPCClient) AddSnapshot(raw string, snap *domain.BalanceSnapshot) {
	c.mu.Lock()
	c.snapshots[raw] = snap
	c.mu.Unlock()
}

// AddError makes the simulation of raw fail with err.
func (c *RPCClient) AddError(raw string, err error) {
	c.mu.Lock()
	c.errs[raw] = err
	c.mu.Unlock()
}

// Simulated lists the raw transactions simulated so far, in call order.
func (c *RPCClient) Simulated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.simulated...)
}
