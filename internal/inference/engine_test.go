package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempool-flow/internal/domain"
)

const (
	watched = "MintWatched"
	owner   = "OwnerA"
)

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(watched, nil, WithClock(func() time.Time { return fixedNow }))
}

func tx(keys ...string) *domain.PendingTransaction {
	return &domain.PendingTransaction{
		Signatures:  []string{"sig1"},
		AccountKeys: keys,
	}
}

func balance(idx int, o, mint, amount string, decimals uint8) domain.TokenBalance {
	return domain.TokenBalance{AccountIndex: idx, Owner: o, Mint: mint, Amount: amount, Decimals: decimals}
}

func TestInfer_AbsentSnapshot(t *testing.T) {
	_, ok := newTestEngine().Infer(tx(owner), nil, 150)
	assert.False(t, ok)
}

func TestInfer_WatchedMintUntouched(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, "OtherMint", "100", 6)},
		PreBalances:       []uint64{10, 10},
		PostBalances:      []uint64{5, 5},
	}
	_, ok := newTestEngine().Infer(tx("Payer", owner), snap, 150)
	assert.False(t, ok)
}

func TestInfer_ZeroEffect(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PreTokenBalances:  []domain.TokenBalance{balance(1, owner, watched, "500", 6)},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "500", 6)},
		PreBalances:       []uint64{1_000_000_000},
		PostBalances:      []uint64{1_000_000_000},
	}
	_, ok := newTestEngine().Infer(tx(owner), snap, 150)
	assert.False(t, ok)
}

// Scenario A: buy of 1.5 tokens for 0.05 SOL.
func TestInfer_ScenarioA_Buy(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(2, owner, watched, "1500000", 6)},
		PreBalances:       []uint64{5_000, 2_000_000_000},
		PostBalances:      []uint64{5_000, 1_950_000_000},
	}

	trade, ok := newTestEngine().Infer(tx("Payer", owner), snap, 150)
	require.True(t, ok)

	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.InDelta(t, 1.5, trade.Token, 1e-12)
	assert.InDelta(t, 0.05, trade.SOL, 1e-12)
	assert.InDelta(t, 0.05/1.5, trade.PriceSOL, 1e-12)
	assert.InDelta(t, 0.05/1.5*150, trade.PriceUSD, 1e-9)
	assert.Equal(t, "sig1", trade.Signature)
	assert.Equal(t, fixedNow, trade.Time)
}

// Scenario B: owner absent from the account list, so the SOL leg is 0.
func TestInfer_ScenarioB_SellOwnerNotInAccounts(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PreTokenBalances:  []domain.TokenBalance{balance(1, owner, watched, "5000000", 6)},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "3000000", 6)},
		PreBalances:       []uint64{1, 2},
		PostBalances:      []uint64{3, 4},
	}

	trade, ok := newTestEngine().Infer(tx("Payer", "Program"), snap, 150)
	require.True(t, ok)

	assert.Equal(t, domain.SideSell, trade.Side)
	assert.InDelta(t, 2.0, trade.Token, 1e-12)
	assert.Zero(t, trade.SOL)
	assert.Zero(t, trade.PriceSOL)
	assert.Zero(t, trade.PriceUSD)
}

func TestInfer_DivisionGuard(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PreTokenBalances:  []domain.TokenBalance{balance(1, owner, watched, "700", 6)},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "700", 6)},
		PreBalances:       []uint64{3_000_000_000},
		PostBalances:      []uint64{2_000_000_000},
	}

	trade, ok := newTestEngine().Infer(tx(owner), snap, 150)
	require.True(t, ok)
	assert.Zero(t, trade.Token)
	assert.InDelta(t, 1.0, trade.SOL, 1e-12)
	assert.Zero(t, trade.PriceSOL)
	assert.Equal(t, domain.SideSell, trade.Side)
}

func TestInfer_Idempotent(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(0, owner, watched, "42", 0)},
		PreBalances:       []uint64{100},
		PostBalances:      []uint64{50},
	}
	e := NewEngine(watched, nil)

	a, okA := e.Infer(tx(owner), snap, 10)
	b, okB := e.Infer(tx(owner), snap, 10)
	require.True(t, okA)
	require.True(t, okB)

	assert.Equal(t, a.Side, b.Side)
	assert.Equal(t, a.SOL, b.SOL)
	assert.Equal(t, a.Token, b.Token)
	assert.Equal(t, a.PriceSOL, b.PriceSOL)
}

func TestInfer_ZeroDecimals(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(0, owner, watched, "42", 0)},
	}

	trade, ok := newTestEngine().Infer(tx(owner), snap, 0)
	require.True(t, ok)
	assert.InDelta(t, 42.0, trade.Token, 1e-12)
	assert.Zero(t, trade.SOL)
	assert.Zero(t, trade.PriceUSD)
}

func TestInfer_FirstPostEntryWins(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{
			balance(1, owner, watched, "1000", 3),
			balance(2, "OwnerB", watched, "999999", 3),
		},
	}

	trade, ok := newTestEngine().Infer(tx(owner, "OwnerB"), snap, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, trade.Token, 1e-12)
}

func TestInfer_PreMatchedByOwnerAndMint(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PreTokenBalances: []domain.TokenBalance{
			balance(3, owner, "OtherMint", "900000000", 6),
			balance(1, owner, watched, "1000000", 6),
		},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "3000000", 6)},
	}

	trade, ok := newTestEngine().Infer(tx(owner), snap, 0)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.InDelta(t, 2.0, trade.Token, 1e-12)
}

func TestInfer_MalformedAmount(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "12abc", 6)},
	}
	_, ok := newTestEngine().Infer(tx(owner), snap, 0)
	assert.False(t, ok)

	snap = &domain.BalanceSnapshot{
		PreTokenBalances:  []domain.TokenBalance{balance(1, owner, watched, "nope", 6)},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "10", 6)},
	}
	_, ok = newTestEngine().Infer(tx(owner), snap, 0)
	assert.False(t, ok)
}

func TestInfer_InconsistentLamports(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "10", 0)},
		PreBalances:       []uint64{1, 2},
		PostBalances:      []uint64{1},
	}
	_, ok := newTestEngine().Infer(tx(owner), snap, 0)
	assert.False(t, ok)

	snap = &domain.BalanceSnapshot{
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "10", 0)},
		PreBalances:       []uint64{1},
		PostBalances:      []uint64{1},
	}
	_, ok = newTestEngine().Infer(tx("Payer", owner), snap, 0)
	assert.False(t, ok)
}

func TestInfer_SOLGainOnSell(t *testing.T) {
	snap := &domain.BalanceSnapshot{
		PreTokenBalances:  []domain.TokenBalance{balance(1, owner, watched, "2500000000", 9)},
		PostTokenBalances: []domain.TokenBalance{balance(1, owner, watched, "500000000", 9)},
		PreBalances:       []uint64{1_000_000_000},
		PostBalances:      []uint64{1_400_000_000},
	}

	trade, ok := newTestEngine().Infer(tx(owner), snap, 100)
	require.True(t, ok)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.InDelta(t, 2.0, trade.Token, 1e-12)
	assert.InDelta(t, 0.4, trade.SOL, 1e-12)
	assert.InDelta(t, 0.2, trade.PriceSOL, 1e-12)
	assert.InDelta(t, 20.0, trade.PriceUSD, 1e-9)
}

func TestEngine_Mint(t *testing.T) {
	assert.Equal(t, watched, NewEngine(watched, nil).Mint())
}
