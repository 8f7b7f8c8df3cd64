// Package sink delivers flushed trade batches to their outputs.
package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
	"mempool-flow/internal/stream"
)

// TradeMessage is the JSON form of a trade shared by the broadcast, Kafka and
// Redis outputs.
type TradeMessage struct {
	Mint      string    `json:"mint"`
	Signature string    `json:"signature"`
	Side      string    `json:"side"`
	SOL       float64   `json:"sol"`
	Token     float64   `json:"token"`
	PriceSOL  float64   `json:"price_sol"`
	PriceUSD  float64   `json:"price_usd"`
	Time      time.Time `json:"time"`
}

// NewTradeMessage converts a trade for the given mint.
func NewTradeMessage(mint string, t domain.InferredTrade) TradeMessage {
	return TradeMessage{
		Mint:      mint,
		Signature: t.Signature,
		Side:      t.Side.String(),
		SOL:       t.SOL,
		Token:     t.Token,
		PriceSOL:  t.PriceSOL,
		PriceUSD:  t.PriceUSD,
		Time:      t.Time.UTC(),
	}
}

// DefaultRemoteTimeout bounds one flush to a networked sink.
const DefaultRemoteTimeout = 2 * time.Second

// Named pairs a sink with the label used for its error metric. A positive
// Timeout bounds each Emit, so an unreachable broker or database cannot hold
// up the stream for longer than that.
type Named struct {
	Name    string
	Sink    stream.Sink
	Timeout time.Duration
}

// Multi fans a batch out to every sink in order. A failing sink is logged and
// counted; the remaining sinks still receive the batch.
type Multi struct {
	sinks  []Named
	logger *zap.Logger
}

// NewMulti creates a fan-out sink.
func NewMulti(logger *zap.Logger, sinks ...Named) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

var _ stream.Sink = (*Multi)(nil)

// Emit never returns an error.
func (m *Multi) Emit(ctx context.Context, trades []domain.InferredTrade) error {
	for _, s := range m.sinks {
		if err := s.emit(ctx, trades); err != nil {
			observability.RecordSinkError(s.Name)
			m.logger.Warn("sink emit failed",
				zap.String("sink", s.Name),
				zap.Int("trades", len(trades)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (n Named) emit(ctx context.Context, trades []domain.InferredTrade) error {
	if n.Timeout <= 0 {
		return n.Sink.Emit(ctx, trades)
	}
	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()
	return n.Sink.Emit(ctx, trades)
}
