package solana

import (
	"context"

	"mempool-flow/internal/domain"
)

// WSClient defines the pending transaction subscription interface.
type WSClient interface {
	// SubscribePendingTransactions subscribes to pending transactions matching the filter.
	// The channel is closed when the connection ends; Err reports why.
	SubscribePendingTransactions(ctx context.Context, filter PendingTxFilter) (<-chan domain.NotificationBatch, error)

	// Err returns the error that terminated the connection, if any.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// PendingTxFilter defines subscription filter for pending transactions.
type PendingTxFilter struct {
	// Accounts restricts the feed to transactions mentioning these accounts.
	// Empty means all transactions.
	Accounts []string
}
