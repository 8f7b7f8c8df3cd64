package clickhouse

import (
	"context"
	"fmt"
	"time"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
	"mempool-flow/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse.
// The trades table is a ReplacingMergeTree keyed by (mint, signature), so
// re-inserted signatures collapse on merge; reads use FINAL.
type TradeStore struct {
	conn *Conn
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk appends trades as one native batch. Records without a signature
// are dropped and counted.
func (s *TradeStore) InsertBulk(ctx context.Context, records []storage.TradeRecord) (err error) {
	records, skipped := storage.Keyed(records)
	observability.RecordDBRowsSkipped("clickhouse", skipped)
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_trades", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			mint, signature, side, sol_amount, token_amount, price_sol, price_usd, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Mint, r.Trade.Signature, r.Trade.Side.String(),
			r.Trade.SOL, r.Trade.Token, r.Trade.PriceSOL, r.Trade.PriceUSD,
			r.Trade.Time.UTC(),
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRecent retrieves up to limit trades for a mint, newest first.
func (s *TradeStore) GetRecent(ctx context.Context, mint string, limit int) ([]storage.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.conn.Query(ctx, `
		SELECT mint, signature, side, sol_amount, token_amount, price_sol, price_usd, observed_at
		FROM trades FINAL
		WHERE mint = ?
		ORDER BY observed_at DESC
		LIMIT ?
	`, mint, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	var result []storage.TradeRecord
	for rows.Next() {
		var (
			r    storage.TradeRecord
			side string
		)
		if err := rows.Scan(
			&r.Mint, &r.Trade.Signature, &side,
			&r.Trade.SOL, &r.Trade.Token, &r.Trade.PriceSOL, &r.Trade.PriceUSD,
			&r.Trade.Time,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if side == domain.SideBuy.String() {
			r.Trade.Side = domain.SideBuy
		} else {
			r.Trade.Side = domain.SideSell
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	return result, nil
}
