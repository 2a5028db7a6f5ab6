package dex

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

// bondingCurveAdapter prices a token as a pure function of circulating
// supply: price(s) = initialPrice + slope*s. No traversal is needed; depth
// per price bucket follows in closed form from the slope.
type bondingCurveAdapter struct {
	deps Deps
}

func (a *bondingCurveAdapter) Kind() model.ProtocolKind {
	return model.KindBondingCurve
}

func (a *bondingCurveAdapter) ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error) {
	curve := common.HexToAddress(q.Pool)
	curveABI, err := CurveABI()
	if err != nil {
		return model.DepthData{}, fmt.Errorf("parse curve abi: %w", err)
	}

	stateCall, err := packCall(curveABI, curve, "curveState")
	if err != nil {
		return model.DepthData{}, err
	}
	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, []chain.Call3{stateCall})
	if err != nil {
		return model.DepthData{}, err
	}

	values, err := unpackResult(curveABI, "curveState", results[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("curve state unreadable: %v", err)), nil
	}
	supplyRaw, errSupply := asBigInt(values[0])
	initialRaw, errInitial := asBigInt(values[1])
	slopeRaw, errSlope := asBigInt(values[2])
	if errSupply != nil || errInitial != nil || errSlope != nil {
		return emptyDepth(q, a.Kind(), "curve state unreadable"), nil
	}

	// The curve token is the contract itself.
	metas, err := fetchTokenMeta(ctx, a.deps.Multicall, q.BlockNumber, []common.Address{curve}, a.deps.Tokens, a.deps.Logger)
	if err != nil {
		return model.DepthData{}, err
	}
	baseMeta := metas[curve]
	quoteMeta := model.TokenMeta{Decimals: 18}

	supply := scaleToFloat(supplyRaw, baseMeta.Decimals)
	initialPrice := scaleToFloat(initialRaw, 18)
	slope := scaleToFloat(slopeRaw, 18)

	nativePrice := initialPrice + slope*supply
	if slope <= 0 || nativePrice <= 0 {
		return emptyDepth(q, a.Kind(), "degenerate curve parameters"), nil
	}
	scale := q.ReferencePrice / nativePrice
	floorPrice := scale * initialPrice

	step := q.Precision
	if step <= 0 {
		step = q.ReferencePrice * defaultStepFraction
	}

	conv := tickmath.NewConverter(q.ReferencePrice, 0)
	cfg := a.deps.Config.Book.WithDefaults()
	usdFactor := q.QuoteUSD
	if usdFactor <= 0 {
		usdFactor = 1
	}

	// A price bucket of width w covers w/(scale*slope) tokens of supply.
	supplyPerPrice := 1 / (scale * slope)

	var asks []model.LiquidityLevel
	for i := 0; i < q.MaxLevels; i++ {
		lo := q.ReferencePrice + float64(i)*step
		hi := lo + step
		baseAmount := (hi - lo) * supplyPerPrice
		mid := (lo + hi) / 2
		if !binAmountSane(baseAmount, cfg.MaxTokenAmount) {
			continue
		}
		asks = append(asks, model.LiquidityLevel{
			PriceLower:       lo,
			PriceUpper:       hi,
			TickLower:        conv.PriceToTick(lo),
			TickUpper:        conv.PriceToTick(hi),
			Liquidity:        supplyRaw.String(),
			BaseTokenAmount:  baseAmount,
			QuoteTokenAmount: baseAmount * mid,
			LiquidityUSD:     baseAmount * mid * usdFactor,
		})
	}

	// Bids exist only down to the curve floor; below the initial price no
	// supply remains to absorb sells.
	var bids []model.LiquidityLevel
	for i := 0; i < q.MaxLevels; i++ {
		hi := q.ReferencePrice - float64(i)*step
		lo := hi - step
		if hi <= floorPrice {
			break
		}
		if lo < floorPrice {
			lo = floorPrice
		}
		baseAmount := (hi - lo) * supplyPerPrice
		mid := (lo + hi) / 2
		if !binAmountSane(baseAmount, cfg.MaxTokenAmount) {
			continue
		}
		bids = append(bids, model.LiquidityLevel{
			PriceLower:       lo,
			PriceUpper:       hi,
			TickLower:        conv.PriceToTick(lo),
			TickUpper:        conv.PriceToTick(hi),
			Liquidity:        supplyRaw.String(),
			BaseTokenAmount:  baseAmount,
			QuoteTokenAmount: baseAmount * mid,
			LiquidityUSD:     baseAmount * mid * usdFactor,
		})
	}

	sortedBids, sortedAsks, totalBid, totalAsk := book.Assemble(bids, asks, q.MaxLevels)

	// Quote raised so far: the integral of the curve up to current supply.
	quoteRaised := scale * (initialPrice*supply + slope*supply*supply/2)
	if math.IsNaN(quoteRaised) || math.IsInf(quoteRaised, 0) {
		quoteRaised = 0
	}

	data := model.DepthData{
		Bids:         sortedBids,
		Asks:         sortedAsks,
		CurrentPrice: q.ReferencePrice,
		Protocol:     a.Kind(),
		Pool:         q.Pool,
		ChainID:      q.ChainID,
		Block:        q.BlockNumber,
		BaseToken:    baseMeta,
		QuoteToken:   quoteMeta,
		TotalBidUSD:  totalBid,
		TotalAskUSD:  totalAsk,
		BaseReserve:  supply,
		QuoteReserve: quoteRaised,
		ComputedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if data.Bids == nil {
		data.Bids = []model.LiquidityLevel{}
	}
	if data.Asks == nil {
		data.Asks = []model.LiquidityLevel{}
	}
	return data, nil
}
