// Package stream drives pending transactions from a subscription through
// simulation and trade inference to a sink.
package stream

import (
	"context"

	"mempool-flow/internal/domain"
)

// Subscription opens a pending transaction feed.
type Subscription interface {
	// Connect dials the feed and subscribes. The returned Stream is live until
	// its notification channel is closed.
	Connect(ctx context.Context) (Stream, error)
}

// Stream is one live subscription.
type Stream interface {
	// Notifications is closed when the transport ends.
	Notifications() <-chan domain.NotificationBatch

	// Err returns the transport error after Notifications is closed.
	Err() error

	// Close tears down the transport.
	Close() error
}

// SnapshotProvider simulates a wire transaction.
// A nil snapshot with nil error means "no inference possible".
type SnapshotProvider interface {
	SimulateTransaction(ctx context.Context, raw []byte) (*domain.BalanceSnapshot, error)
}

// Inferer turns a transaction and its snapshot into at most one trade.
type Inferer interface {
	Infer(tx *domain.PendingTransaction, snap *domain.BalanceSnapshot, price float64) (domain.InferredTrade, bool)
}

// PriceReader returns the latest SOL/USD price, 0 when unknown.
type PriceReader interface {
	Current() float64
}

// Sink receives flushed batches of trades. The slice is owned by the sink.
type Sink interface {
	Emit(ctx context.Context, trades []domain.InferredTrade) error
}
