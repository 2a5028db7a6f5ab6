package tickmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterAnchorsReferencePrice(t *testing.T) {
	for _, tc := range []struct {
		referencePrice float64
		currentTick    int64
	}{
		{1850.25, -201360},
		{0.000032, 276324},
		{1.0, 0},
		{64000, 69082},
	} {
		conv := NewConverter(tc.referencePrice, tc.currentTick)
		assert.InEpsilon(t, tc.referencePrice, conv.TickToPrice(tc.currentTick), 1e-9,
			"current tick must land exactly on the reference price")
	}
}

func TestConverterRoundTrip(t *testing.T) {
	conv := NewConverter(1850.25, -201360)

	for tick := int64(-500000); tick <= 500000; tick += 12345 {
		price := conv.TickToPrice(tick)
		require.Greater(t, price, 0.0)

		got := conv.PriceToTick(price)
		diff := got - tick
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int64(1), "round trip at tick %d drifted by %d", tick, diff)
	}
}

func TestConverterMonotonic(t *testing.T) {
	conv := NewConverter(100, 0)
	prev := conv.TickToPrice(-1000)
	for tick := int64(-999); tick <= 1000; tick++ {
		cur := conv.TickToPrice(tick)
		assert.Greater(t, cur, prev, "price must rise with tick at %d", tick)
		prev = cur
	}
}

func TestConverterClamps(t *testing.T) {
	conv := NewConverter(100, 0)
	conv.PriceFloor = 1.0
	conv.PriceCeil = 10000.0

	assert.Equal(t, 1.0, conv.TickToPrice(MinTick))
	assert.Equal(t, 10000.0, conv.TickToPrice(MaxTick))
	assert.Equal(t, MinTick, conv.PriceToTick(0))
	assert.Equal(t, MinTick, conv.PriceToTick(-5))
}

func TestBinPrice(t *testing.T) {
	// The active bin sits exactly on the reference price; neighbors step
	// geometrically by binStep basis points.
	assert.InEpsilon(t, 1850.25, BinPrice(8388608, 8388608, 25, 1850.25), 1e-12)
	assert.InEpsilon(t, 1850.25*1.0025, BinPrice(8388609, 8388608, 25, 1850.25), 1e-12)
	assert.InEpsilon(t, 1850.25/1.0025, BinPrice(8388607, 8388608, 25, 1850.25), 1e-12)
	assert.InEpsilon(t, 100*math.Pow(1.001, 10), BinPrice(110, 100, 10, 100), 1e-12)
}
