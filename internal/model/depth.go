package model

import "fmt"

// Query describes one depth computation: one pool, one precision, one
// reference price. Queries are value objects; nothing in them is shared
// between concurrent invocations.
type Query struct {
	ChainID uint64 `json:"chain_id"`
	// Pool is the hex pool (or curve contract) address.
	Pool string `json:"pool"`
	// Kind selects the adapter. KindUnknown triggers structural probing.
	Kind ProtocolKind `json:"kind"`
	// ReferencePrice is the current price of the base token in quote terms,
	// supplied by the caller. Raw ticks carry no currency unit, so without
	// it the output prices would be meaningless.
	ReferencePrice float64 `json:"reference_price"`
	// QuoteUSD converts quote-token value to USD. Zero means USD fields
	// equal the quote-denominated value.
	QuoteUSD float64 `json:"quote_usd"`
	// MaxLevels bounds each side of the book.
	MaxLevels int `json:"max_levels"`
	// Precision is the price bucket width. Zero emits raw intervals.
	Precision float64 `json:"precision"`
	// BlockNumber pins the reads to a block. Zero means latest.
	BlockNumber uint64 `json:"block_number"`
}

// Validate checks the fields a query cannot run without.
func (q Query) Validate() error {
	if q.Pool == "" {
		return fmt.Errorf("pool address is required")
	}
	if q.ReferencePrice <= 0 {
		return fmt.Errorf("reference price must be greater than zero")
	}
	if q.MaxLevels <= 0 {
		return fmt.Errorf("max levels must be greater than zero")
	}
	if q.Precision < 0 {
		return fmt.Errorf("precision must not be negative")
	}
	return nil
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// LiquidityLevel is one row of the reconstructed book. Prices and amounts
// are floats because they are presentation values; Liquidity keeps the raw
// big-int as a decimal string so consumers can re-derive amounts.
type LiquidityLevel struct {
	PriceLower       float64 `json:"price_lower"`
	PriceUpper       float64 `json:"price_upper"`
	TickLower        int64   `json:"tick_lower"`
	TickUpper        int64   `json:"tick_upper"`
	Liquidity        string  `json:"liquidity"`
	BaseTokenAmount  float64 `json:"base_token_amount"`
	QuoteTokenAmount float64 `json:"quote_token_amount"`
	LiquidityUSD     float64 `json:"liquidity_usd"`
}

// DepthData is the engine's sole output: a synthetic order book rebuilt
// from on-chain liquidity. Bids are sorted price descending, asks price
// ascending, and the two sides never overlap in price.
type DepthData struct {
	Bids         []LiquidityLevel `json:"bids"`
	Asks         []LiquidityLevel `json:"asks"`
	CurrentPrice float64          `json:"current_price"`
	Protocol     ProtocolKind     `json:"protocol"`
	Pool         string           `json:"pool"`
	ChainID      uint64           `json:"chain_id"`
	Block        uint64           `json:"block,omitempty"`
	BaseToken    TokenMeta        `json:"base_token"`
	QuoteToken   TokenMeta        `json:"quote_token"`
	TotalBidUSD  float64          `json:"total_bid_usd"`
	TotalAskUSD  float64          `json:"total_ask_usd"`
	BaseReserve  float64          `json:"base_reserve"`
	QuoteReserve float64          `json:"quote_reserve"`
	ComputedAt   string           `json:"computed_at"`
	// Empty marks a degraded result: the pool was reachable but its state
	// could not be turned into a book. Reason says why. An empty book from
	// a pool with genuinely no liquidity has Empty=false and no Reason.
	Empty  bool   `json:"empty,omitempty"`
	Reason string `json:"reason,omitempty"`
}
