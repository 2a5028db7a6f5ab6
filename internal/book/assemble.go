package book

import (
	"sort"

	"ammdepth/internal/model"
)

// Assemble finalizes the two sides into the output shape: bids sorted price
// descending, asks ascending, both truncated to maxLevels, with summed USD
// totals. Pure function, no I/O.
func Assemble(bids, asks []model.LiquidityLevel, maxLevels int) (sortedBids, sortedAsks []model.LiquidityLevel, totalBidUSD, totalAskUSD float64) {
	sortedBids = append([]model.LiquidityLevel(nil), bids...)
	sortedAsks = append([]model.LiquidityLevel(nil), asks...)

	sort.Slice(sortedBids, func(i, j int) bool {
		return sortedBids[i].PriceLower > sortedBids[j].PriceLower
	})
	sort.Slice(sortedAsks, func(i, j int) bool {
		return sortedAsks[i].PriceLower < sortedAsks[j].PriceLower
	})

	if maxLevels > 0 {
		if len(sortedBids) > maxLevels {
			sortedBids = sortedBids[:maxLevels]
		}
		if len(sortedAsks) > maxLevels {
			sortedAsks = sortedAsks[:maxLevels]
		}
	}

	for _, level := range sortedBids {
		totalBidUSD += level.LiquidityUSD
	}
	for _, level := range sortedAsks {
		totalAskUSD += level.LiquidityUSD
	}
	return sortedBids, sortedAsks, totalBidUSD, totalAskUSD
}
