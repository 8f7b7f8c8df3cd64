package stream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
)

// DefaultFlushInterval is the minimum spacing between two sink flushes.
const DefaultFlushInterval = 200 * time.Millisecond

// errStreamEnded is reported when a stream closes without a transport error.
var errStreamEnded = errors.New("subscription stream ended")

// Driver consumes a subscription, simulates and infers each transaction in
// order, and flushes batches of trades to a sink. It reconnects forever.
type Driver struct {
	subscription  Subscription
	simulator     SnapshotProvider
	engine        Inferer
	prices        PriceReader
	sink          Sink
	flushInterval time.Duration
	backoff       backoff.BackOff
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
	logger        *zap.Logger

	pending   []domain.InferredTrade
	lastFlush time.Time
}

// DriverOptions contains configuration for creating a Driver.
type DriverOptions struct {
	Subscription  Subscription
	Simulator     SnapshotProvider
	Engine        Inferer
	Prices        PriceReader
	Sink          Sink
	FlushInterval time.Duration   // Default: 200ms
	Backoff       backoff.BackOff // Default: NewReconnectBackoff()
	Logger        *zap.Logger
}

// NewDriver creates a new stream driver.
func NewDriver(opts DriverOptions) *Driver {
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	b := opts.Backoff
	if b == nil {
		b = NewReconnectBackoff()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		subscription:  opts.Subscription,
		simulator:     opts.Simulator,
		engine:        opts.Engine,
		prices:        opts.Prices,
		sink:          opts.Sink,
		flushInterval: flushInterval,
		backoff:       b,
		sleep:         sleepContext,
		now:           time.Now,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled. Transport failures never end it.
func (d *Driver) Run(ctx context.Context) error {
	if d.subscription == nil || d.simulator == nil || d.engine == nil || d.sink == nil {
		return errors.New("stream driver: subscription, simulator, engine and sink are required")
	}

	d.backoff.Reset()
	for {
		err := d.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := d.backoff.NextBackOff()
		if wait == backoff.Stop || wait > MaxReconnectBackoff {
			wait = MaxReconnectBackoff
		}
		observability.RecordReconnect()
		d.logger.Warn("stream error, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait),
		)

		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// runOnce serves a single connection until it fails.
func (d *Driver) runOnce(ctx context.Context) error {
	d.logger.Debug("connecting to pending transaction feed")
	st, err := d.subscription.Connect(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	d.backoff.Reset()
	d.logger.Info("subscribed to pending transactions")

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	notifications := st.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-notifications:
			if !ok {
				d.flush(ctx)
				if err := st.Err(); err != nil {
					return err
				}
				return errStreamEnded
			}
			d.process(ctx, batch)
			if d.now().Sub(d.lastFlush) >= d.flushInterval {
				d.flush(ctx)
			}

		case <-ticker.C:
			// Feed went quiet for a cycle; don't leave rows waiting.
			if d.now().Sub(d.lastFlush) >= d.flushInterval {
				d.flush(ctx)
			}
		}
	}
}

// process simulates and infers each transaction of a notification in order.
// Simulation calls are issued one at a time.
func (d *Driver) process(ctx context.Context, batch domain.NotificationBatch) {
	for i := range batch.Transactions {
		tx := &batch.Transactions[i]
		observability.RecordTransactionReceived()

		start := d.now()
		snap, err := d.simulator.SimulateTransaction(ctx, tx.Raw)
		observability.RecordSimulationLatency(d.now().Sub(start).Seconds())
		if err != nil {
			observability.RecordSimulationOutcome("error")
			d.logger.Debug("simulation failed", zap.String("sig", tx.DisplayID()), zap.Error(err))
			continue
		}
		if snap == nil {
			observability.RecordSimulationOutcome("empty")
			continue
		}
		observability.RecordSimulationOutcome("ok")

		var price float64
		if d.prices != nil {
			price = d.prices.Current()
		}

		trade, ok := d.engine.Infer(tx, snap, price)
		if !ok {
			continue
		}
		observability.RecordTradeInferred(trade.Side.String())
		d.pending = append(d.pending, trade)
	}
}

// flush hands pending trades to the sink. Sink errors are logged only.
func (d *Driver) flush(ctx context.Context) {
	if len(d.pending) == 0 {
		return
	}

	trades := d.pending
	d.pending = nil
	d.lastFlush = d.now()

	observability.RecordBatchFlushed(len(trades))
	if err := d.sink.Emit(ctx, trades); err != nil {
		d.logger.Warn("sink emit failed", zap.Int("trades", len(trades)), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
