package solana

import (
	"context"

	"mempool-flow/internal/domain"
)

// RPCClient defines the Solana RPC HTTP calls the monitor needs.
type RPCClient interface {
	// SimulateTransaction dry-runs a wire transaction against current state.
	// Returns nil snapshot when the node produced no result or the simulation failed.
	SimulateTransaction(ctx context.Context, raw []byte) (*domain.BalanceSnapshot, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}
