package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Tick bounds of the concentrated-liquidity price space. Derived from the
// uint160 sqrt price range: 1.0001^(±887272) is the widest representable span.
const (
	MinTick int64 = -887272
	MaxTick int64 = 887272
)

var (
	// MinSqrtRatio is the sqrt price at MinTick.
	MinSqrtRatio, _ = new(big.Int).SetString("4295128739", 10)
	// MaxSqrtRatio is the sqrt price at MaxTick.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	one        = uint256.NewInt(1)
	lowBitMask = uint256.NewInt(0xffffffff)
	maxUint256 = uint256.MustFromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

	// oddBitRatio is sqrt(1/1.0001) in UQ128.128, applied when the lowest
	// bit of |tick| is set; unitRatio is 1 in UQ128.128.
	oddBitRatio = mustHex("0xfffcb933bd6fad37aa2d162d1a594001")
	unitRatio   = mustHex("0x100000000000000000000000000000000")

	// bitRatios[i] is sqrt(1/1.0001^(2^(i+1))) in UQ128.128, multiplied in
	// when bit i+1 of |tick| is set.
	bitRatios = [19]*uint256.Int{
		mustHex("0xfff97272373d413259a46990580e213a"),
		mustHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		mustHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		mustHex("0xffcb9843d60f6159c9db58835c926644"),
		mustHex("0xff973b41fa98c081472e6896dfb254c0"),
		mustHex("0xff2ea16466c96a3843ec78b326b52861"),
		mustHex("0xfe5dee046a99a2a811c461f1969c3053"),
		mustHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		mustHex("0xf987a7253ac413176f2b074cf7815e54"),
		mustHex("0xf3392b0822b70005940c7a398e4b70f3"),
		mustHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		mustHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		mustHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		mustHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		mustHex("0x31be135f97d08fd981231505542fcfa6"),
		mustHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		mustHex("0x5d6af8dedb81196699c329225ee604"),
		mustHex("0x2216e584f5fa1ea926041bedfe98"),
		mustHex("0x48a170391f7dc42444e8fa2"),
	}
)

func mustHex(s string) *uint256.Int {
	n, _ := new(big.Int).SetString(s[2:], 16)
	return uint256.MustFromBig(n)
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point value,
// bit-exact with the on-chain computation.
func SqrtRatioAtTick(tick int64) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfBounds
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(oddBitRatio)
	} else {
		ratio.Set(unitRatio)
	}
	for i, c := range bitRatios {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, c).Rsh(ratio, 128)
		}
	}

	// The ladder computes the ratio for -|tick|; invert for positive ticks.
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Narrow UQ128.128 to Q64.96, rounding up.
	rem := new(uint256.Int).And(ratio, lowBitMask)
	ratio.Rsh(ratio, 32)
	if rem.Sign() > 0 {
		ratio.Add(ratio, one)
	}

	return ratio.ToBig(), nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is at most
// sqrtPriceX96, found by binary search over the valid tick range.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int64, error) {
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}

	low, high := MinTick, MaxTick
	var tick int64
	for low <= high {
		mid := (low + high) / 2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}
