package book

import (
	"testing"

	"ammdepth/internal/model"
)

func level(lower, upper, base, quote, usd float64, liquidity string) model.LiquidityLevel {
	return model.LiquidityLevel{
		PriceLower:       lower,
		PriceUpper:       upper,
		Liquidity:        liquidity,
		BaseTokenAmount:  base,
		QuoteTokenAmount: quote,
		LiquidityUSD:     usd,
	}
}

func TestAggregateMergesBuckets(t *testing.T) {
	levels := []model.LiquidityLevel{
		level(100.1, 100.4, 1, 100, 100, "500"),
		level(100.6, 100.9, 2, 200, 200, "700"),
		level(101.2, 101.8, 3, 300, 300, "900"),
	}

	got := Aggregate(levels, 1.0, Ask)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(got))
	}

	// The first two levels both round up to the 101 boundary.
	first := got[0]
	if first.PriceUpper != 101 {
		t.Fatalf("unexpected bucket edge %f", first.PriceUpper)
	}
	if first.BaseTokenAmount != 3 || first.QuoteTokenAmount != 300 || first.LiquidityUSD != 300 {
		t.Fatalf("amounts not summed: %+v", first)
	}
	if first.Liquidity != "1200" {
		t.Fatalf("raw liquidity not summed: %s", first.Liquidity)
	}
}

func TestAggregateBidRoundsDown(t *testing.T) {
	levels := []model.LiquidityLevel{
		level(99.2, 99.6, 1, 99, 99, "100"),
		level(99.7, 99.95, 1, 99, 99, "100"),
	}

	got := Aggregate(levels, 1.0, Bid)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].PriceLower != 99 {
		t.Fatalf("bid bucket must round down, got lower %f", got[0].PriceLower)
	}
}

func TestAggregateZeroPrecisionPassthrough(t *testing.T) {
	levels := []model.LiquidityLevel{level(100, 101, 1, 100, 100, "10")}
	got := Aggregate(levels, 0, Ask)
	if len(got) != 1 || got[0] != levels[0] {
		t.Fatalf("zero precision must pass levels through unchanged")
	}
}

func TestAssembleSortsAndTruncates(t *testing.T) {
	bids := []model.LiquidityLevel{
		level(97, 98, 1, 97, 97, "1"),
		level(99, 100, 1, 99, 99, "1"),
		level(98, 99, 1, 98, 98, "1"),
	}
	asks := []model.LiquidityLevel{
		level(102, 103, 1, 102, 102, "1"),
		level(100, 101, 1, 100, 100, "1"),
		level(101, 102, 1, 101, 101, "1"),
	}

	gotBids, gotAsks, totalBid, totalAsk := Assemble(bids, asks, 2)
	if len(gotBids) != 2 || len(gotAsks) != 2 {
		t.Fatalf("truncation failed: %d bids, %d asks", len(gotBids), len(gotAsks))
	}

	if gotBids[0].PriceLower != 99 || gotBids[1].PriceLower != 98 {
		t.Fatalf("bids not sorted descending: %+v", gotBids)
	}
	if gotAsks[0].PriceLower != 100 || gotAsks[1].PriceLower != 101 {
		t.Fatalf("asks not sorted ascending: %+v", gotAsks)
	}

	// Totals cover only the retained levels.
	if totalBid != 99+98 {
		t.Fatalf("unexpected bid total %f", totalBid)
	}
	if totalAsk != 100+101 {
		t.Fatalf("unexpected ask total %f", totalAsk)
	}

	// Best bid must stay below best ask.
	if gotBids[0].PriceUpper > gotAsks[0].PriceLower {
		t.Fatalf("book crossed: bid %f over ask %f", gotBids[0].PriceUpper, gotAsks[0].PriceLower)
	}
}

func TestAssembleEmptySides(t *testing.T) {
	bids, asks, totalBid, totalAsk := Assemble(nil, nil, 10)
	if len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("expected empty sides")
	}
	if totalBid != 0 || totalAsk != 0 {
		t.Fatalf("expected zero totals")
	}
}
