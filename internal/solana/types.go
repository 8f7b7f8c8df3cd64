package solana

// simulateResult is the raw RPC response for simulateTransaction.
type simulateResult struct {
	Context *rpcContext    `json:"context"`
	Value   *simulateValue `json:"value"`
}

type rpcContext struct {
	Slot int64 `json:"slot"`
}

type simulateValue struct {
	Err               interface{}       `json:"err"`
	Logs              []string          `json:"logs"`
	UnitsConsumed     *uint64           `json:"unitsConsumed"`
	PreBalances       []uint64          `json:"preBalances"`
	PostBalances      []uint64          `json:"postBalances"`
	PreTokenBalances  []rpcTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []rpcTokenBalance `json:"postTokenBalances"`
}

type rpcTokenBalance struct {
	AccountIndex  int               `json:"accountIndex"`
	Mint          string            `json:"mint"`
	Owner         string            `json:"owner"`
	ProgramID     string            `json:"programId"`
	UITokenAmount *rpcUITokenAmount `json:"uiTokenAmount"`
}

type rpcUITokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}
