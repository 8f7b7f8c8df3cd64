package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mempool-flow/internal/domain"
)

// DefaultRecentLimit caps the recent-trades list.
const DefaultRecentLimit = 500

// Redis publishes trades on a pub/sub channel and keeps a capped list of the
// most recent ones under "trades:<mint>".
type Redis struct {
	client  redis.UniversalClient
	mint    string
	channel string
	limit   int64
}

// NewRedis creates a Redis sink. limit <= 0 uses DefaultRecentLimit.
func NewRedis(client redis.UniversalClient, mint, channel string, limit int) *Redis {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Redis{client: client, mint: mint, channel: channel, limit: int64(limit)}
}

// RecentKey is the list key holding recent trades, newest first.
func (r *Redis) RecentKey() string {
	return "trades:" + r.mint
}

// Emit publishes and records the batch in one pipeline.
func (r *Redis) Emit(ctx context.Context, trades []domain.InferredTrade) error {
	if len(trades) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	key := r.RecentKey()
	for _, t := range trades {
		data, err := json.Marshal(NewTradeMessage(r.mint, t))
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}
		pipe.Publish(ctx, r.channel, data)
		pipe.LPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, r.limit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Recent returns up to n recent trades, newest first.
func (r *Redis) Recent(ctx context.Context, n int) ([]TradeMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.RecentKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent trades: %w", err)
	}

	out := make([]TradeMessage, 0, len(raw))
	for _, s := range raw {
		var m TradeMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
