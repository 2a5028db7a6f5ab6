package tickmath

import "math/big"

// Q96 is the Q64.96 fixed-point scaling factor.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// Amount0Delta returns the base-token amount held by liquidity L between two
// sqrt prices: L * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA). Inputs may be
// given in either order. Amounts here feed presentation values, so the
// result rounds down.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() <= 0 || liquidity.Sign() <= 0 {
		return new(big.Int)
	}

	numerator := new(big.Int).Lsh(liquidity, 96)
	numerator.Mul(numerator, new(big.Int).Sub(sqrtB, sqrtA))
	numerator.Div(numerator, sqrtB)
	return numerator.Div(numerator, sqrtA)
}

// Amount1Delta returns the quote-token amount held by liquidity L between
// two sqrt prices: L * (sqrtB - sqrtA) / 2^96.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if liquidity.Sign() <= 0 {
		return new(big.Int)
	}

	amount := new(big.Int).Sub(sqrtB, sqrtA)
	amount.Mul(amount, liquidity)
	return amount.Div(amount, Q96)
}

// VirtualReserves estimates the token reserves implied by in-range
// liquidity at the current sqrt price: base = L*2^96/sqrtP, quote =
// L*sqrtP/2^96.
func VirtualReserves(sqrtPriceX96, liquidity *big.Int) (base, quote *big.Int) {
	base = new(big.Int)
	quote = new(big.Int)
	if sqrtPriceX96.Sign() <= 0 || liquidity.Sign() <= 0 {
		return base, quote
	}

	base.Lsh(liquidity, 96)
	base.Div(base, sqrtPriceX96)

	quote.Mul(liquidity, sqrtPriceX96)
	quote.Div(quote, Q96)
	return base, quote
}
