package domain

// Quote is a venue-scoped price offer for a pair and amount. Quotes are
// ephemeral: they live for the duration of one routing decision and are never
// persisted or shared across attempts.
type Quote struct {
	Dex          string  `json:"dex"`
	Price        float64 `json:"price"`
	Fee          float64 `json:"fee"`
	EstimatedOut float64 `json:"estimatedOut"`
}

// ExecutionResult is the outcome of a swap executed against a venue. The
// executed price may differ from the quoted price by slippage.
type ExecutionResult struct {
	TxHash        string  `json:"txHash"`
	ExecutedPrice float64 `json:"executedPrice"`
	AmountOut     float64 `json:"amountOut"`
	Dex           string  `json:"dex"`
}
