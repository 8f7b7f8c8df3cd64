// Package price keeps a periodically refreshed SOL/USD price.
package price

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mempool-flow/internal/observability"
)

// DefaultRefreshInterval is the delay between two refreshes.
const DefaultRefreshInterval = 15 * time.Second

// Oracle caches the latest successfully fetched price. Run is the only
// writer; Current never blocks.
type Oracle struct {
	source   Source
	interval time.Duration
	logger   *zap.Logger
	bits     atomic.Uint64
}

// NewOracle creates an oracle. The cached price starts at 0 (unknown).
func NewOracle(source Source, interval time.Duration, logger *zap.Logger) *Oracle {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Current returns the last fetched price, or 0 if no fetch has succeeded.
func (o *Oracle) Current() float64 {
	return math.Float64frombits(o.bits.Load())
}

// Prime performs the startup fetch. Failure leaves the price at its previous value.
func (o *Oracle) Prime(ctx context.Context) {
	o.refresh(ctx)
}

// Run refreshes the price every interval until ctx is cancelled.
func (o *Oracle) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.refresh(ctx)
		}
	}
}

func (o *Oracle) refresh(ctx context.Context) {
	p, err := o.source.Fetch(ctx)
	if err != nil || p <= 0 {
		observability.RecordPriceFetchError()
		o.logger.Warn("price fetch failed, keeping cached value",
			zap.Float64("cached", o.Current()),
			zap.Error(err),
		)
		return
	}

	o.bits.Store(math.Float64bits(p))
	observability.UpdateSOLPrice(p)
	o.logger.Debug("fetched SOL price", zap.Float64("price", p))
}
