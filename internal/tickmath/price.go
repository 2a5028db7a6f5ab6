package tickmath

import "math"

// tickBase is the per-tick price ratio of the exponential tick space.
const tickBase = 1.0001

var logTickBase = math.Log(tickBase)

// Converter maps tick indices to display prices and back. The decimal
// adjustment is derived once per query from the caller's reference price so
// that the current tick lands exactly on it; recomputing it mid-query would
// silently desynchronize levels against each other.
type Converter struct {
	adjust float64
	// PriceFloor and PriceCeil, when positive, clamp converted prices
	// instead of letting extreme ticks propagate overflow downstream.
	PriceFloor float64
	PriceCeil  float64
}

// NewConverter derives the decimal adjustment satisfying
// referencePrice == adjust * tickBase^currentTick.
func NewConverter(referencePrice float64, currentTick int64) Converter {
	return Converter{
		adjust: referencePrice / math.Pow(tickBase, float64(clampTick(currentTick))),
	}
}

// Adjust returns the derived decimal-adjustment scalar.
func (c Converter) Adjust() float64 {
	return c.adjust
}

// TickToPrice returns the display price at a tick: adjust * tickBase^tick,
// monotonically increasing in tick.
func (c Converter) TickToPrice(tick int64) float64 {
	price := c.adjust * math.Pow(tickBase, float64(clampTick(tick)))
	return c.clampPrice(price)
}

// PriceToTick is the near-inverse of TickToPrice, accurate to within one
// tick. Non-positive prices map to MinTick.
func (c Converter) PriceToTick(price float64) int64 {
	if price <= 0 || c.adjust <= 0 {
		return MinTick
	}
	tick := math.Round(math.Log(price/c.adjust) / logTickBase)
	return clampTick(int64(tick))
}

func (c Converter) clampPrice(price float64) float64 {
	if math.IsNaN(price) {
		return 0
	}
	if c.PriceFloor > 0 && price < c.PriceFloor {
		return c.PriceFloor
	}
	if c.PriceCeil > 0 && (price > c.PriceCeil || math.IsInf(price, 1)) {
		return c.PriceCeil
	}
	return price
}

func clampTick(tick int64) int64 {
	if tick < MinTick {
		return MinTick
	}
	if tick > MaxTick {
		return MaxTick
	}
	return tick
}

// BinPrice returns the display price of a liquidity-book bin. Bin steps are
// geometric in basis points, anchored so the active bin lands exactly on
// the reference price.
func BinPrice(binID, activeID int64, binStep uint32, referencePrice float64) float64 {
	ratio := 1 + float64(binStep)/10000
	return referencePrice * math.Pow(ratio, float64(binID-activeID))
}
