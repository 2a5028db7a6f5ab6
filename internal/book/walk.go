package book

import (
	"math/big"

	"ammdepth/internal/model"
)

// Interval is a tick range over which active liquidity is constant. The
// core AMM invariant makes liquidity constant between two consecutive
// initialized ticks, so the walk output covers the book without gaps.
type Interval struct {
	TickLower int64
	TickUpper int64
	Liquidity *big.Int
}

// WalkUp walks the ask side: initialized ticks ascending from the current
// tick. Crossing tick t upward applies +liquidityNet[t] to the running
// total before the interval above t. A running total that drops to zero or
// below skips that interval but does not stop the walk; a more negative
// net elsewhere may turn it positive again.
func WalkUp(ticks []model.TickRecord, currentTick int64, currentLiquidity *big.Int, maxIntervals int) []Interval {
	liquidity := new(big.Int)
	if currentLiquidity != nil {
		liquidity.Set(currentLiquidity)
	}

	var out []Interval
	lower := currentTick
	for _, t := range ticks {
		if t.Index <= currentTick {
			continue
		}
		if maxIntervals > 0 && len(out) >= maxIntervals {
			break
		}
		if liquidity.Sign() > 0 {
			out = append(out, Interval{
				TickLower: lower,
				TickUpper: t.Index,
				Liquidity: new(big.Int).Set(liquidity),
			})
		}
		if t.LiquidityNet != nil {
			liquidity.Add(liquidity, t.LiquidityNet)
		}
		lower = t.Index
	}
	return out
}

// WalkDown walks the bid side: initialized ticks descending from the
// current tick, applying -liquidityNet[t] on each downward crossing.
// An initialized tick at the current tick is the first crossing: its net
// comes off before any interval is computed, because the in-range
// liquidity already includes it. Intervals come out in descending price
// order.
func WalkDown(ticks []model.TickRecord, currentTick int64, currentLiquidity *big.Int, maxIntervals int) []Interval {
	liquidity := new(big.Int)
	if currentLiquidity != nil {
		liquidity.Set(currentLiquidity)
	}

	var out []Interval
	upper := currentTick
	for i := len(ticks) - 1; i >= 0; i-- {
		t := ticks[i]
		if t.Index > currentTick {
			continue
		}
		if t.Index == currentTick {
			if t.LiquidityNet != nil {
				liquidity.Sub(liquidity, t.LiquidityNet)
			}
			continue
		}
		if maxIntervals > 0 && len(out) >= maxIntervals {
			break
		}
		if liquidity.Sign() > 0 {
			out = append(out, Interval{
				TickLower: t.Index,
				TickUpper: upper,
				Liquidity: new(big.Int).Set(liquidity),
			})
		}
		if t.LiquidityNet != nil {
			liquidity.Sub(liquidity, t.LiquidityNet)
		}
		upper = t.Index
	}
	return out
}
