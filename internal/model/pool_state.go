package model

import "math/big"

// PoolState is the point-in-time core state of a pool, read in a single
// batch so every field refers to the same block. Interpretation of Tick and
// FeeOrStep depends on the protocol family.
type PoolState struct {
	// Tick is the current tick for tick pools or the active bin id for bin
	// pools. Signed; bin ids are stored offset-free.
	Tick int64
	// Liquidity is the in-range liquidity at Tick. Unsigned.
	Liquidity *big.Int
	// SqrtPriceX96 is the Q64.96 square-root price, when the pool exposes one.
	SqrtPriceX96 *big.Int
	// TickSpacing is the initialized-tick stride for tick pools, 1 otherwise.
	TickSpacing int64
	// FeeOrStep carries the fee tier (ppm) for tick pools or the bin step
	// (basis points) for bin pools.
	FeeOrStep uint32
}

// TickRecord is the liquidity bookkeeping of one initialized tick.
// LiquidityNet is signed: crossing the tick upward adds it to the running
// liquidity, crossing downward subtracts it.
type TickRecord struct {
	Index          int64
	LiquidityGross *big.Int
	LiquidityNet   *big.Int
}

// Bin is one populated price bucket of a bin-liquidity pool, holding raw
// reserves of both tokens.
type Bin struct {
	ID       int64
	ReserveX *big.Int
	ReserveY *big.Int
}
