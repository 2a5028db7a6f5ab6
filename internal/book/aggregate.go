package book

import (
	"math"
	"math/big"
	"sort"

	"ammdepth/internal/model"
)

// Aggregate merges levels that fall into the same rounded price bucket by
// summing their amounts and USD value. Bid buckets round down, ask buckets
// round up, keeping the two sides from crossing after rounding. Zero
// precision returns the input unchanged.
func Aggregate(levels []model.LiquidityLevel, precision float64, side Side) []model.LiquidityLevel {
	if precision <= 0 || len(levels) == 0 {
		return levels
	}

	type bucket struct {
		level     model.LiquidityLevel
		liquidity *big.Int
	}
	buckets := make(map[int64]*bucket)

	for _, level := range levels {
		var key int64
		if side == Bid {
			key = int64(math.Floor(level.PriceLower / precision))
		} else {
			key = int64(math.Ceil(level.PriceUpper / precision))
		}

		entry, ok := buckets[key]
		if !ok {
			var lower, upper float64
			if side == Bid {
				lower = float64(key) * precision
				upper = lower + precision
			} else {
				upper = float64(key) * precision
				lower = upper - precision
			}
			entry = &bucket{
				level: model.LiquidityLevel{
					PriceLower: lower,
					PriceUpper: upper,
					TickLower:  level.TickLower,
					TickUpper:  level.TickUpper,
				},
				liquidity: new(big.Int),
			}
			buckets[key] = entry
		}

		entry.level.BaseTokenAmount += level.BaseTokenAmount
		entry.level.QuoteTokenAmount += level.QuoteTokenAmount
		entry.level.LiquidityUSD += level.LiquidityUSD
		if level.TickLower < entry.level.TickLower {
			entry.level.TickLower = level.TickLower
		}
		if level.TickUpper > entry.level.TickUpper {
			entry.level.TickUpper = level.TickUpper
		}
		if raw, ok := new(big.Int).SetString(level.Liquidity, 10); ok {
			entry.liquidity.Add(entry.liquidity, raw)
		}
	}

	out := make([]model.LiquidityLevel, 0, len(buckets))
	for _, entry := range buckets {
		entry.level.Liquidity = entry.liquidity.String()
		out = append(out, entry.level)
	}

	sort.Slice(out, func(i, j int) bool {
		if side == Bid {
			return out[i].PriceLower > out[j].PriceLower
		}
		return out[i].PriceLower < out[j].PriceLower
	})
	return out
}
