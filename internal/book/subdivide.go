package book

import (
	"math"
	"math/big"

	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

// Side distinguishes the two halves of the book.
type Side int

const (
	Bid Side = iota
	Ask
)

// Config bounds the level pipeline. The price-range clamps guard against
// pathological tick ranges producing astronomically wide levels; they are
// heuristics, not protocol constants, hence configurable.
type Config struct {
	// MinPriceFraction clamps a level's lower price to this fraction of its
	// upper price.
	MinPriceFraction float64
	// MaxPriceMultiple clamps a level's upper price to this multiple of its
	// lower price.
	MaxPriceMultiple float64
	// MaxTokenAmount is the implausible-magnitude ceiling; levels whose
	// amounts exceed it are numerical artifacts and are dropped.
	MaxTokenAmount float64
	// PriceFloor and PriceCeil clamp converted prices.
	PriceFloor float64
	PriceCeil  float64
	// MaxLevelsPerInterval caps the buckets one interval can split into.
	// A wide interval with a fine precision would otherwise produce tens
	// of thousands of levels only for assembly to throw them away.
	MaxLevelsPerInterval int
}

// WithDefaults fills zero fields with the default bounds.
func (c Config) WithDefaults() Config {
	if c.MinPriceFraction <= 0 {
		c.MinPriceFraction = 0.01
	}
	if c.MaxPriceMultiple <= 0 {
		c.MaxPriceMultiple = 100
	}
	if c.MaxTokenAmount <= 0 {
		c.MaxTokenAmount = 1e30
	}
	if c.PriceFloor <= 0 {
		c.PriceFloor = 1e-18
	}
	if c.PriceCeil <= 0 {
		c.PriceCeil = 1e18
	}
	if c.MaxLevelsPerInterval <= 0 {
		c.MaxLevelsPerInterval = 1000
	}
	return c
}

// Subdivide splits one constant-liquidity interval into levels of the
// requested price precision. An interval narrower than the precision comes
// out as a single level. Splitting never changes the interval's liquidity,
// only its price granularity: every bucket is converted back to a sub-tick
// range and re-evaluated with the same liquidity. Bid buckets step down
// from the upper price edge, ask buckets step up from the lower edge, so
// aggregated best bid stays below best ask. Output is capped at
// cfg.MaxLevelsPerInterval buckets per interval.
func Subdivide(
	iv Interval,
	side Side,
	conv tickmath.Converter,
	precision float64,
	baseDecimals, quoteDecimals uint8,
	quoteUSD float64,
	cfg Config,
) []model.LiquidityLevel {
	cfg = cfg.WithDefaults()
	if iv.Liquidity == nil || iv.Liquidity.Sign() <= 0 {
		return nil
	}

	priceLower := conv.TickToPrice(iv.TickLower)
	priceUpper := conv.TickToPrice(iv.TickUpper)
	if priceLower < priceUpper*cfg.MinPriceFraction {
		priceLower = priceUpper * cfg.MinPriceFraction
	}
	if priceUpper > priceLower*cfg.MaxPriceMultiple {
		priceUpper = priceLower * cfg.MaxPriceMultiple
	}
	if !(priceLower > 0) || priceUpper <= priceLower {
		return nil
	}

	if precision <= 0 || priceUpper-priceLower <= precision {
		level, ok := makeLevel(iv.TickLower, iv.TickUpper, priceLower, priceUpper, iv.Liquidity, side, baseDecimals, quoteDecimals, quoteUSD, cfg)
		if !ok {
			return nil
		}
		return []model.LiquidityLevel{level}
	}

	// Both sides walk away from the current price, so hitting the cap
	// drops only the buckets furthest from it.
	var out []model.LiquidityLevel
	if side == Ask {
		for lo := priceLower; lo < priceUpper; lo += precision {
			if len(out) >= cfg.MaxLevelsPerInterval {
				break
			}
			hi := lo + precision
			if hi > priceUpper {
				hi = priceUpper
			}
			out = appendBucket(out, lo, hi, iv.Liquidity, side, conv, baseDecimals, quoteDecimals, quoteUSD, cfg)
		}
	} else {
		for hi := priceUpper; hi > priceLower; hi -= precision {
			if len(out) >= cfg.MaxLevelsPerInterval {
				break
			}
			lo := hi - precision
			if lo < priceLower {
				lo = priceLower
			}
			out = appendBucket(out, lo, hi, iv.Liquidity, side, conv, baseDecimals, quoteDecimals, quoteUSD, cfg)
		}
	}
	return out
}

func appendBucket(
	out []model.LiquidityLevel,
	priceLower, priceUpper float64,
	liquidity *big.Int,
	side Side,
	conv tickmath.Converter,
	baseDecimals, quoteDecimals uint8,
	quoteUSD float64,
	cfg Config,
) []model.LiquidityLevel {
	tickLower := conv.PriceToTick(priceLower)
	tickUpper := conv.PriceToTick(priceUpper)
	if tickUpper <= tickLower {
		// Bucket narrower than one tick holds no resolvable liquidity.
		return out
	}
	level, ok := makeLevel(tickLower, tickUpper, priceLower, priceUpper, liquidity, side, baseDecimals, quoteDecimals, quoteUSD, cfg)
	if !ok {
		return out
	}
	return append(out, level)
}

func makeLevel(
	tickLower, tickUpper int64,
	priceLower, priceUpper float64,
	liquidity *big.Int,
	side Side,
	baseDecimals, quoteDecimals uint8,
	quoteUSD float64,
	cfg Config,
) (model.LiquidityLevel, bool) {
	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return model.LiquidityLevel{}, false
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return model.LiquidityLevel{}, false
	}

	base := scaleAmount(tickmath.Amount0Delta(sqrtLower, sqrtUpper, liquidity), baseDecimals)
	quote := scaleAmount(tickmath.Amount1Delta(sqrtLower, sqrtUpper, liquidity), quoteDecimals)

	// The side's resident token decides whether the level is real depth.
	resident := quote
	if side == Ask {
		resident = base
	}
	if !saneAmount(resident, cfg.MaxTokenAmount) {
		return model.LiquidityLevel{}, false
	}
	if math.IsNaN(base) || math.IsInf(base, 0) || base < 0 {
		return model.LiquidityLevel{}, false
	}
	if math.IsNaN(quote) || math.IsInf(quote, 0) || quote < 0 {
		return model.LiquidityLevel{}, false
	}

	usdFactor := quoteUSD
	if usdFactor <= 0 {
		usdFactor = 1
	}

	return model.LiquidityLevel{
		PriceLower:       priceLower,
		PriceUpper:       priceUpper,
		TickLower:        tickLower,
		TickUpper:        tickUpper,
		Liquidity:        liquidity.String(),
		BaseTokenAmount:  base,
		QuoteTokenAmount: quote,
		LiquidityUSD:     quote * usdFactor,
	}, true
}

func saneAmount(x, ceiling float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0 && x <= ceiling
}

func scaleAmount(raw *big.Int, decimals uint8) float64 {
	value, _ := new(big.Float).SetInt(raw).Float64()
	return value / math.Pow10(int(decimals))
}
