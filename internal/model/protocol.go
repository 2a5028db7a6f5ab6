package model

// ProtocolKind identifies the structural family of an AMM pool. It selects
// the adapter that knows how to turn that pool's state into an order book.
type ProtocolKind string

const (
	// KindTickCLMM is a concentrated-liquidity pool with exponential ticks
	// and a tick bitmap (Uniswap V3 and its forks).
	KindTickCLMM ProtocolKind = "tick_clmm"
	// KindBinDLMM is a bin-liquidity pool with a direct bin accessor
	// (Liquidity Book style pairs).
	KindBinDLMM ProtocolKind = "bin_dlmm"
	// KindConstantProduct is a two-reserve x*y=k pool.
	KindConstantProduct ProtocolKind = "constant_product"
	// KindBondingCurve prices a token as a pure function of circulating supply.
	KindBondingCurve ProtocolKind = "bonding_curve"
	// KindUnknown means the pool must be probed before dispatch.
	KindUnknown ProtocolKind = "unknown"
)

// Valid reports whether k names a dispatchable protocol family.
func (k ProtocolKind) Valid() bool {
	switch k {
	case KindTickCLMM, KindBinDLMM, KindConstantProduct, KindBondingCurve:
		return true
	default:
		return false
	}
}
