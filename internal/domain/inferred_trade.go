package domain

import "time"

// Side is the direction of an inferred trade from the owner's point of view.
type Side int

// Side values.
const (
	SideBuy Side = iota
	SideSell
)

// String returns "Buy" or "Sell".
func (s Side) String() string {
	if s == SideBuy {
		return "Buy"
	}
	return "Sell"
}

// InferredTrade is the buy/sell flow derived from one pending transaction.
// Amounts are absolute values. PriceUSD of 0 means the USD price is unknown.
type InferredTrade struct {
	Time      time.Time
	Side      Side
	SOL       float64 // |lamport delta| / 1e9
	Token     float64 // |token delta| in UI units
	PriceSOL  float64 // SOL per token
	PriceUSD  float64 // PriceSOL * SOL/USD
	Signature string
}
