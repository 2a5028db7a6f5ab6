package dex

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

func TestDLMMDepth(t *testing.T) {
	pair := common.HexToAddress("0x2222222222222222222222222222222222222221")
	tokenX := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenY := common.HexToAddress("0x2222222222222222222222222222222222222223")
	pairABI := mustABI(t, DLMMPairABI)

	const (
		activeID = int64(8388608)
		binStep  = uint32(25)
		refPrice = 20.0
	)

	sc := &scriptedCaller{}
	sc.set(pair, mustPack(t, pairABI, "getActiveId"), mustPackReturn(t, pairABI, "getActiveId", big.NewInt(activeID)))
	sc.set(pair, mustPack(t, pairABI, "getBinStep"), mustPackReturn(t, pairABI, "getBinStep", uint16(binStep)))
	sc.set(pair, mustPack(t, pairABI, "getTokenX"), mustPackReturn(t, pairABI, "getTokenX", tokenX))
	sc.set(pair, mustPack(t, pairABI, "getTokenY"), mustPackReturn(t, pairABI, "getTokenY", tokenY))
	scriptERC20(t, sc, tokenX, 18, "JOE")
	scriptERC20(t, sc, tokenY, 6, "USDC")

	setBin := func(id int64, reserveX, reserveY *big.Int) {
		sc.set(pair, mustPack(t, pairABI, "getBin", big.NewInt(id)),
			mustPackReturn(t, pairABI, "getBin", reserveX, reserveY))
	}
	oneX, _ := new(big.Int).SetString("1000000000000000000", 10) // 1 tokenX
	twentyY := big.NewInt(20_000_000)                            // 20 tokenY

	setBin(activeID-2, big.NewInt(0), twentyY)
	setBin(activeID-1, big.NewInt(0), big.NewInt(0))
	setBin(activeID, oneX, twentyY)
	setBin(activeID+1, big.NewInt(0), big.NewInt(0))
	setBin(activeID+2, oneX, big.NewInt(0))

	adapter := &dlmmAdapter{deps: testDeps(t, sc, Config{BinRadius: 2}).normalized()}

	q := model.Query{
		ChainID:        1,
		Pool:           pair.Hex(),
		Kind:           model.KindBinDLMM,
		ReferencePrice: refPrice,
		MaxLevels:      10,
	}
	data, err := adapter.ComputeDepth(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// X reserves above the active bin become asks, Y reserves below become
	// bids, and the active bin contributes to both sides.
	if len(data.Asks) != 2 {
		t.Fatalf("expected 2 ask levels, got %d", len(data.Asks))
	}
	if len(data.Bids) != 2 {
		t.Fatalf("expected 2 bid levels, got %d", len(data.Bids))
	}

	// The active bin's ask starts on the reference price; its bid ends there.
	if data.Asks[0].PriceLower != refPrice {
		t.Fatalf("best ask detached from reference price: %f", data.Asks[0].PriceLower)
	}
	if data.Bids[0].PriceUpper != refPrice {
		t.Fatalf("best bid detached from reference price: %f", data.Bids[0].PriceUpper)
	}
	for _, ask := range data.Asks {
		if ask.PriceLower < refPrice {
			t.Fatalf("ask below current price: %f", ask.PriceLower)
		}
	}
	for _, bid := range data.Bids {
		if bid.PriceUpper > refPrice {
			t.Fatalf("bid above current price: %f", bid.PriceUpper)
		}
	}

	// Bin two steps out must land exactly on the geometric grid.
	wantLower := tickmath.BinPrice(activeID+2, activeID, binStep, refPrice)
	if data.Asks[1].PriceLower != wantLower {
		t.Fatalf("ask grid misaligned: %f != %f", data.Asks[1].PriceLower, wantLower)
	}

	if data.BaseReserve != 2 {
		t.Fatalf("base reserve = %f, want 2", data.BaseReserve)
	}
	if data.QuoteReserve != 40 {
		t.Fatalf("quote reserve = %f, want 40", data.QuoteReserve)
	}
}

func TestDLMMDegradedState(t *testing.T) {
	pair := common.HexToAddress("0x2222222222222222222222222222222222222224")
	adapter := &dlmmAdapter{deps: testDeps(t, &scriptedCaller{}, Config{BinRadius: 2}).normalized()}

	q := model.Query{
		ChainID:        1,
		Pool:           pair.Hex(),
		Kind:           model.KindBinDLMM,
		ReferencePrice: 20,
		MaxLevels:      10,
	}
	data, err := adapter.ComputeDepth(context.Background(), q)
	if err != nil {
		t.Fatalf("degraded state must not error: %v", err)
	}
	if !data.Empty || data.Reason == "" {
		t.Fatalf("expected degraded empty result, got %+v", data)
	}
}
