package domain

// TokenBalance is one token account touched by a simulated transaction.
type TokenBalance struct {
	AccountIndex int    // index into the transaction account list
	Owner        string // wallet owning the token account
	Mint         string // token mint
	Amount       string // raw integer amount as a decimal string
	Decimals     uint8
}

// BalanceSnapshot holds pre/post balances produced by simulating a transaction.
// PreBalances/PostBalances are lamports, index-aligned with the account list.
// A nil *BalanceSnapshot means simulation produced nothing usable.
type BalanceSnapshot struct {
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	PreBalances       []uint64
	PostBalances      []uint64
}
