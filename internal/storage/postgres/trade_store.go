package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
	"mempool-flow/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk appends trades in one round trip, skipping known (mint, signature)
// pairs. Records without a signature are dropped and counted.
func (s *TradeStore) InsertBulk(ctx context.Context, records []storage.TradeRecord) (err error) {
	records, skipped := storage.Keyed(records)
	observability.RecordDBRowsSkipped("postgres", skipped)
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_trades", time.Since(start).Seconds(), err)
	}()

	query := `
		INSERT INTO trades (
			mint, signature, side, sol_amount, token_amount, price_sol, price_usd, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (mint, signature) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.Mint,
			r.Trade.Signature,
			r.Trade.Side.String(),
			r.Trade.SOL,
			r.Trade.Token,
			r.Trade.PriceSOL,
			r.Trade.PriceUSD,
			r.Trade.Time.UTC(),
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert trades: %w", err)
	}
	return nil
}

// GetRecent retrieves up to limit trades for a mint, newest first.
func (s *TradeStore) GetRecent(ctx context.Context, mint string, limit int) ([]storage.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT mint, signature, side, sol_amount, token_amount, price_sol, price_usd, observed_at
		FROM trades
		WHERE mint = $1
		ORDER BY observed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}
	defer rows.Close()

	var result []storage.TradeRecord
	for rows.Next() {
		var (
			r    storage.TradeRecord
			side string
		)
		if err := rows.Scan(
			&r.Mint,
			&r.Trade.Signature,
			&side,
			&r.Trade.SOL,
			&r.Trade.Token,
			&r.Trade.PriceSOL,
			&r.Trade.PriceUSD,
			&r.Trade.Time,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		r.Trade.Side = parseSide(side)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	return result, nil
}

func parseSide(s string) domain.Side {
	if s == domain.SideBuy.String() {
		return domain.SideBuy
	}
	return domain.SideSell
}
