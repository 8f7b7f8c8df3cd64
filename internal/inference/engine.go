// Package inference derives buy/sell trades for one watched mint from the
// balance deltas of a simulated transaction.
//
// The heuristic looks at the first token account of the watched mint in the
// post-simulation balances, takes its owner as the trader, and compares that
// owner's token and lamport balances before and after. It is not an
// instruction decoder: multi-account effects within one transaction are
// ignored.
package inference

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mempool-flow/internal/domain"
)

// LamportsPerSOL converts lamports to SOL.
const LamportsPerSOL = 1e9

// Engine infers trades for a single watched mint. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	mint   string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures Engine.
type Option func(*Engine)

// WithClock sets the clock used to timestamp trades.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine watching mint.
func NewEngine(mint string, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		mint:   mint,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mint returns the watched mint.
func (e *Engine) Mint() string {
	return e.mint
}

// Infer returns the trade implied by tx, or false when there is nothing to
// report: no snapshot, watched mint untouched, zero net effect, or data too
// malformed to interpret. It never fails.
func (e *Engine) Infer(tx *domain.PendingTransaction, snap *domain.BalanceSnapshot, solPrice float64) (domain.InferredTrade, bool) {
	if tx == nil || snap == nil {
		return domain.InferredTrade{}, false
	}

	post, ok := e.firstPostBalance(snap)
	if !ok {
		return domain.InferredTrade{}, false
	}

	tokenDelta, err := e.tokenDelta(snap, post)
	if err != nil {
		e.logger.Debug("skip transaction with malformed token amount",
			zap.String("sig", tx.DisplayID()),
			zap.Error(err),
		)
		return domain.InferredTrade{}, false
	}

	solDelta, ok := e.solDelta(tx, snap, post.Owner)
	if !ok {
		return domain.InferredTrade{}, false
	}

	if tokenDelta.IsZero() && solDelta == 0 {
		return domain.InferredTrade{}, false
	}

	side := domain.SideSell
	if tokenDelta.IsPositive() {
		side = domain.SideBuy
	}

	tokenAbs := math.Abs(tokenDelta.InexactFloat64())
	solAbs := math.Abs(solDelta)

	var priceSOL float64
	if !tokenDelta.IsZero() && tokenAbs != 0 {
		priceSOL = solAbs / tokenAbs
	}

	return domain.InferredTrade{
		Time:      e.now(),
		Side:      side,
		SOL:       solAbs,
		Token:     tokenAbs,
		PriceSOL:  priceSOL,
		PriceUSD:  priceSOL * solPrice,
		Signature: tx.DisplayID(),
	}, true
}

// firstPostBalance returns the first post-simulation balance of the watched mint.
func (e *Engine) firstPostBalance(snap *domain.BalanceSnapshot) (domain.TokenBalance, bool) {
	for _, b := range snap.PostTokenBalances {
		if b.Mint == e.mint {
			return b, true
		}
	}
	return domain.TokenBalance{}, false
}

// tokenDelta is (post - pre) scaled by the post entry's decimals. A missing
// pre entry means the owner held none before.
func (e *Engine) tokenDelta(snap *domain.BalanceSnapshot, post domain.TokenBalance) (decimal.Decimal, error) {
	postAmt, err := parseRawAmount(post.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	preAmt := decimal.Zero
	for _, b := range snap.PreTokenBalances {
		if b.Owner == post.Owner && b.Mint == e.mint {
			preAmt, err = parseRawAmount(b.Amount)
			if err != nil {
				return decimal.Zero, err
			}
			break
		}
	}

	// Shift by -0 leaves the value untouched, which is the divisor-of-1 case.
	return postAmt.Sub(preAmt).Shift(-int32(post.Decimals)), nil
}

// solDelta is the owner's lamport change in SOL. An owner absent from the
// account list, or a snapshot without lamport balances, counts as 0. It
// returns false when the lamport arrays are inconsistent.
func (e *Engine) solDelta(tx *domain.PendingTransaction, snap *domain.BalanceSnapshot, owner string) (float64, bool) {
	idx := tx.AccountIndex(owner)
	if idx < 0 {
		return 0, true
	}

	if len(snap.PreBalances) == 0 && len(snap.PostBalances) == 0 {
		return 0, true
	}

	if len(snap.PreBalances) != len(snap.PostBalances) || idx >= len(snap.PostBalances) {
		e.logger.Warn("skip transaction with inconsistent lamport balances",
			zap.String("sig", tx.DisplayID()),
			zap.Int("owner_index", idx),
			zap.Int("pre_len", len(snap.PreBalances)),
			zap.Int("post_len", len(snap.PostBalances)),
		)
		return 0, false
	}

	delta := int64(snap.PostBalances[idx] - snap.PreBalances[idx])
	return float64(delta) / LamportsPerSOL, true
}

func parseRawAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
