package sink

import (
	"context"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/storage"
)

// Store persists trades through a storage.TradeStore.
type Store struct {
	mint  string
	store storage.TradeStore
}

// NewStore creates a store sink for trades of mint.
func NewStore(mint string, store storage.TradeStore) *Store {
	return &Store{mint: mint, store: store}
}

// Emit inserts the batch in bulk.
func (s *Store) Emit(ctx context.Context, trades []domain.InferredTrade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]storage.TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = storage.TradeRecord{Mint: s.mint, Trade: t}
	}
	return s.store.InsertBulk(ctx, records)
}
