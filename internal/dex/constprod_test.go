package dex

import (
	"context"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammdepth/internal/model"
)

func TestConstantProductDepth(t *testing.T) {
	pair := common.HexToAddress("0x1111111111111111111111111111111111111112")
	base := common.HexToAddress("0x1111111111111111111111111111111111111113")
	quote := common.HexToAddress("0x1111111111111111111111111111111111111114")
	pairABI := mustABI(t, PairABI)

	// 10 base tokens (18 decimals) against 1000 quote tokens (6 decimals):
	// native price 100, matching the reference price exactly.
	reserve0, _ := new(big.Int).SetString("10000000000000000000", 10)
	reserve1 := big.NewInt(1000_000_000)

	sc := &scriptedCaller{}
	sc.set(pair, mustPack(t, pairABI, "getReserves"), mustPackReturn(t, pairABI, "getReserves",
		reserve0, reserve1, uint32(0)))
	sc.set(pair, mustPack(t, pairABI, "token0"), mustPackReturn(t, pairABI, "token0", base))
	sc.set(pair, mustPack(t, pairABI, "token1"), mustPackReturn(t, pairABI, "token1", quote))
	scriptERC20(t, sc, base, 18, "WETH")
	scriptERC20(t, sc, quote, 6, "USDC")

	adapter := &constProductAdapter{deps: testDeps(t, sc, Config{}).normalized()}

	q := model.Query{
		ChainID:        1,
		Pool:           pair.Hex(),
		Kind:           model.KindConstantProduct,
		ReferencePrice: 100,
		MaxLevels:      20,
		Precision:      0.5,
	}
	data, err := adapter.ComputeDepth(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.Empty {
		t.Fatalf("unexpected degraded result: %s", data.Reason)
	}
	if len(data.Asks) != 20 || len(data.Bids) != 20 {
		t.Fatalf("expected full sides, got %d bids, %d asks", len(data.Bids), len(data.Asks))
	}

	if data.Asks[0].PriceLower != 100 {
		t.Fatalf("best ask must start at the reference price, got %f", data.Asks[0].PriceLower)
	}
	if data.Bids[0].PriceUpper != 100 {
		t.Fatalf("best bid must end at the reference price, got %f", data.Bids[0].PriceUpper)
	}

	// The first ask bucket sells the base the pool gives up between price
	// 100 and 100.5: x(100) - x(100.5) = sqrt(k)*(1/10 - 1/sqrt(100.5)).
	k := 10.0 * 1000.0
	want := math.Sqrt(k) * (1/math.Sqrt(100) - 1/math.Sqrt(100.5))
	got := data.Asks[0].BaseTokenAmount
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("first ask base amount = %f, want %f", got, want)
	}

	if data.BaseReserve != 10 || data.QuoteReserve != 1000 {
		t.Fatalf("reserves mis-scaled: %f / %f", data.BaseReserve, data.QuoteReserve)
	}
	if data.TotalBidUSD <= 0 || data.TotalAskUSD <= 0 {
		t.Fatalf("totals must be positive: %f / %f", data.TotalBidUSD, data.TotalAskUSD)
	}
}

func TestConstantProductEmptyReserves(t *testing.T) {
	pair := common.HexToAddress("0x1111111111111111111111111111111111111115")
	base := common.HexToAddress("0x1111111111111111111111111111111111111116")
	quote := common.HexToAddress("0x1111111111111111111111111111111111111117")
	pairABI := mustABI(t, PairABI)

	sc := &scriptedCaller{}
	sc.set(pair, mustPack(t, pairABI, "getReserves"), mustPackReturn(t, pairABI, "getReserves",
		big.NewInt(0), big.NewInt(0), uint32(0)))
	sc.set(pair, mustPack(t, pairABI, "token0"), mustPackReturn(t, pairABI, "token0", base))
	sc.set(pair, mustPack(t, pairABI, "token1"), mustPackReturn(t, pairABI, "token1", quote))
	scriptERC20(t, sc, base, 18, "AAA")
	scriptERC20(t, sc, quote, 18, "BBB")

	adapter := &constProductAdapter{deps: testDeps(t, sc, Config{}).normalized()}

	q := model.Query{
		ChainID:        1,
		Pool:           pair.Hex(),
		Kind:           model.KindConstantProduct,
		ReferencePrice: 100,
		MaxLevels:      10,
	}
	data, err := adapter.ComputeDepth(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Empty {
		t.Fatalf("drained pair is a valid empty book, not a degraded result")
	}
	if len(data.Bids) != 0 || len(data.Asks) != 0 {
		t.Fatalf("expected empty book, got %d bids, %d asks", len(data.Bids), len(data.Asks))
	}
}
