package storage

import (
	"context"

	"mempool-flow/internal/domain"
)

// TradeRecord is an inferred trade tagged with the mint it was inferred for.
type TradeRecord struct {
	Mint  string
	Trade domain.InferredTrade
}

// TradeStore provides access to the append-only trades log.
type TradeStore interface {
	// InsertBulk appends trades. Records whose (mint, signature) already exist
	// are skipped, since the same pending transaction can be seen again after a
	// reconnect. Records lacking a mint or signature are dropped without
	// failing the rest of the batch.
	InsertBulk(ctx context.Context, records []TradeRecord) error

	// GetRecent retrieves up to limit trades for a mint, newest first.
	GetRecent(ctx context.Context, mint string, limit int) ([]TradeRecord, error)
}
