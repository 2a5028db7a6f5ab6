package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

var (
	clmmPool  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	clmmBase  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	clmmQuote = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

// scriptCLMMState registers slot0, liquidity, spacing, fee, tokens, and the
// token metadata for a pool at tick 0 with spacing 60.
func scriptCLMMState(t *testing.T, sc *scriptedCaller, liquidity *big.Int) {
	t.Helper()
	poolABI := mustABI(t, CLMMPoolABI)

	sc.set(clmmPool, mustPack(t, poolABI, "slot0"), mustPackReturn(t, poolABI, "slot0",
		new(big.Int).Set(tickmath.Q96), big.NewInt(0),
		uint16(0), uint16(0), uint16(0), uint8(0), true))
	sc.set(clmmPool, mustPack(t, poolABI, "liquidity"), mustPackReturn(t, poolABI, "liquidity", liquidity))
	sc.set(clmmPool, mustPack(t, poolABI, "tickSpacing"), mustPackReturn(t, poolABI, "tickSpacing", big.NewInt(60)))
	sc.set(clmmPool, mustPack(t, poolABI, "fee"), mustPackReturn(t, poolABI, "fee", big.NewInt(3000)))
	sc.set(clmmPool, mustPack(t, poolABI, "token0"), mustPackReturn(t, poolABI, "token0", clmmBase))
	sc.set(clmmPool, mustPack(t, poolABI, "token1"), mustPackReturn(t, poolABI, "token1", clmmQuote))

	scriptERC20(t, sc, clmmBase, 6, "USDC")
	scriptERC20(t, sc, clmmQuote, 18, "WETH")
}

func scriptBitmapWord(t *testing.T, sc *scriptedCaller, word int16, value *big.Int) {
	t.Helper()
	poolABI := mustABI(t, CLMMPoolABI)
	sc.set(clmmPool, mustPack(t, poolABI, "tickBitmap", word), mustPackReturn(t, poolABI, "tickBitmap", value))
}

func scriptTick(t *testing.T, sc *scriptedCaller, tick int64, gross, net *big.Int) {
	t.Helper()
	poolABI := mustABI(t, CLMMPoolABI)
	sc.set(clmmPool, mustPack(t, poolABI, "ticks", big.NewInt(tick)), mustPackReturn(t, poolABI, "ticks",
		gross, net, big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), uint32(0), true))
}

func clmmQuery() model.Query {
	return model.Query{
		ChainID:        1,
		Pool:           clmmPool.Hex(),
		Kind:           model.KindTickCLMM,
		ReferencePrice: 100,
		MaxLevels:      10,
	}
}

func TestCLMMEmptyTickSet(t *testing.T) {
	sc := &scriptedCaller{}
	scriptCLMMState(t, sc, big.NewInt(5000))
	for word := int16(-1); word <= 1; word++ {
		scriptBitmapWord(t, sc, word, big.NewInt(0))
	}

	adapter := &clmmAdapter{deps: testDeps(t, sc, Config{TickWordRadius: 1}).normalized()}

	data, err := adapter.ComputeDepth(context.Background(), clmmQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No initialized ticks is a valid empty book, not a degraded result.
	if data.Empty {
		t.Fatalf("empty tick set must not mark the result degraded: %s", data.Reason)
	}
	if len(data.Bids) != 0 || len(data.Asks) != 0 {
		t.Fatalf("expected empty book, got %d bids, %d asks", len(data.Bids), len(data.Asks))
	}
	if data.BaseToken.Symbol != "USDC" || data.QuoteToken.Symbol != "WETH" {
		t.Fatalf("token metadata lost: %+v / %+v", data.BaseToken, data.QuoteToken)
	}
	if data.BaseReserve <= 0 || data.QuoteReserve <= 0 {
		t.Fatalf("in-range liquidity must imply virtual reserves: %f / %f", data.BaseReserve, data.QuoteReserve)
	}
}

func TestCLMMSingleAskInterval(t *testing.T) {
	sc := &scriptedCaller{}
	scriptCLMMState(t, sc, big.NewInt(5_000_000_000))

	// Bit 1 of word 0 is compressed tick 1: one initialized tick at 60.
	word := new(big.Int).Lsh(big.NewInt(1), 1)
	scriptBitmapWord(t, sc, -1, big.NewInt(0))
	scriptBitmapWord(t, sc, 0, word)
	scriptBitmapWord(t, sc, 1, big.NewInt(0))
	scriptTick(t, sc, 60, big.NewInt(1000), big.NewInt(-1000))

	adapter := &clmmAdapter{deps: testDeps(t, sc, Config{TickWordRadius: 1}).normalized()}

	data, err := adapter.ComputeDepth(context.Background(), clmmQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(data.Bids) != 0 {
		t.Fatalf("no ticks below current, expected no bids: %+v", data.Bids)
	}
	if len(data.Asks) != 1 {
		t.Fatalf("expected one ask level, got %d", len(data.Asks))
	}

	ask := data.Asks[0]
	if ask.PriceLower < 99.9 || ask.PriceLower > 100.1 {
		t.Fatalf("best ask must start at the current price, got %f", ask.PriceLower)
	}
	if ask.PriceUpper <= ask.PriceLower {
		t.Fatalf("crossed ask level: [%f, %f]", ask.PriceLower, ask.PriceUpper)
	}
	if ask.Liquidity != "5000000000" {
		t.Fatalf("interval liquidity changed: %s", ask.Liquidity)
	}
	if ask.BaseTokenAmount <= 0 {
		t.Fatalf("ask level holds no base tokens")
	}
}

func TestCLMMZeroSumViolation(t *testing.T) {
	sc := &scriptedCaller{}
	scriptCLMMState(t, sc, big.NewInt(5000))

	// Full-range discovery with a single tick whose net cannot sum to zero.
	word := new(big.Int).Lsh(big.NewInt(1), 1)
	scriptBitmapWord(t, sc, 0, word)
	scriptTick(t, sc, 60, big.NewInt(1000), big.NewInt(-1000))

	adapter := &clmmAdapter{deps: testDeps(t, sc, Config{TickWordRadius: 0}).normalized()}

	_, err := adapter.ComputeDepth(context.Background(), clmmQuery())
	var decodeErr *model.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError for inconsistent tick set, got %v", err)
	}
}

func TestCLMMDegradedState(t *testing.T) {
	// A pool that reverts every accessor degrades to a typed empty result.
	sc := &scriptedCaller{}
	adapter := &clmmAdapter{deps: testDeps(t, sc, Config{TickWordRadius: 1}).normalized()}

	data, err := adapter.ComputeDepth(context.Background(), clmmQuery())
	if err != nil {
		t.Fatalf("degraded state must not error: %v", err)
	}
	if !data.Empty || data.Reason == "" {
		t.Fatalf("expected degraded empty result, got %+v", data)
	}
	if len(data.Bids) != 0 || len(data.Asks) != 0 {
		t.Fatalf("degraded result must carry an empty book")
	}
}
