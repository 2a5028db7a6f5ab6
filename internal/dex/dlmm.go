package dex

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

const maxBinID = 1<<24 - 1

// dlmmAdapter reads a bin-liquidity pair. The protocol exposes bins around
// the active bin directly, so there is no bitmap step and no delta walk:
// bins below the active bin hold quote reserves (bids), bins above hold
// base reserves (asks), and the active bin contributes to both sides.
type dlmmAdapter struct {
	deps Deps
}

func (a *dlmmAdapter) Kind() model.ProtocolKind {
	return model.KindBinDLMM
}

func (a *dlmmAdapter) ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error) {
	pair := common.HexToAddress(q.Pool)
	pairABI, err := DLMMPairABI()
	if err != nil {
		return model.DepthData{}, fmt.Errorf("parse pair abi: %w", err)
	}

	methods := []string{"getActiveId", "getBinStep", "getTokenX", "getTokenY"}
	calls := make([]chain.Call3, 0, len(methods))
	for _, method := range methods {
		call, err := packCall(pairABI, pair, method)
		if err != nil {
			return model.DepthData{}, err
		}
		calls = append(calls, call)
	}

	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, calls)
	if err != nil {
		return model.DepthData{}, err
	}

	activeValues, err := unpackResult(pairABI, "getActiveId", results[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("active id unreadable: %v", err)), nil
	}
	activeBig, err := asBigInt(activeValues[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), "active id unreadable"), nil
	}
	activeID := activeBig.Int64()

	stepValues, err := unpackResult(pairABI, "getBinStep", results[1])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("bin step unreadable: %v", err)), nil
	}
	stepBig, err := asBigInt(stepValues[0])
	if err != nil || stepBig.Sign() <= 0 {
		return emptyDepth(q, a.Kind(), "invalid bin step"), nil
	}
	binStep := uint32(stepBig.Uint64())

	tokenXValues, err := unpackResult(pairABI, "getTokenX", results[2])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("tokenX unreadable: %v", err)), nil
	}
	tokenX, err := asAddress(tokenXValues[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), "tokenX unreadable"), nil
	}
	tokenYValues, err := unpackResult(pairABI, "getTokenY", results[3])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("tokenY unreadable: %v", err)), nil
	}
	tokenY, err := asAddress(tokenYValues[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), "tokenY unreadable"), nil
	}

	metas, err := fetchTokenMeta(ctx, a.deps.Multicall, q.BlockNumber, []common.Address{tokenX, tokenY}, a.deps.Tokens, a.deps.Logger)
	if err != nil {
		return model.DepthData{}, err
	}
	baseMeta, quoteMeta := metas[tokenX], metas[tokenY]

	bins, err := a.fetchBins(ctx, q, pair, activeID)
	if err != nil {
		return model.DepthData{}, err
	}

	cfg := a.deps.Config.Book
	usdFactor := q.QuoteUSD
	if usdFactor <= 0 {
		usdFactor = 1
	}

	var bids, asks []model.LiquidityLevel
	var baseReserve, quoteReserve float64
	for _, bin := range bins {
		priceLower := tickmath.BinPrice(bin.ID, activeID, binStep, q.ReferencePrice)
		priceUpper := tickmath.BinPrice(bin.ID+1, activeID, binStep, q.ReferencePrice)
		mid := (priceLower + priceUpper) / 2

		base := scaleToFloat(bin.ReserveX, baseMeta.Decimals)
		quote := scaleToFloat(bin.ReserveY, quoteMeta.Decimals)
		baseReserve += base
		quoteReserve += quote

		rawLiquidity := new(big.Int).Add(bin.ReserveX, bin.ReserveY)

		// X reserves sit above the active price, Y reserves below; the
		// active bin holds both and feeds both sides.
		if bin.ID >= activeID && binAmountSane(base, cfg.MaxTokenAmount) {
			asks = append(asks, model.LiquidityLevel{
				PriceLower:       priceLower,
				PriceUpper:       priceUpper,
				TickLower:        bin.ID,
				TickUpper:        bin.ID + 1,
				Liquidity:        rawLiquidity.String(),
				BaseTokenAmount:  base,
				QuoteTokenAmount: base * mid,
				LiquidityUSD:     base * mid * usdFactor,
			})
		}
		if bin.ID <= activeID && binAmountSane(quote, cfg.MaxTokenAmount) {
			bidLower, bidUpper := priceLower, priceUpper
			if bin.ID == activeID {
				// The active bin straddles the current price; its quote
				// reserves bid just below it.
				bidUpper = priceLower
				bidLower = tickmath.BinPrice(bin.ID-1, activeID, binStep, q.ReferencePrice)
			}
			mid := (bidLower + bidUpper) / 2
			bids = append(bids, model.LiquidityLevel{
				PriceLower:       bidLower,
				PriceUpper:       bidUpper,
				TickLower:        bin.ID,
				TickUpper:        bin.ID + 1,
				Liquidity:        rawLiquidity.String(),
				BaseTokenAmount:  quote / mid,
				QuoteTokenAmount: quote,
				LiquidityUSD:     quote * usdFactor,
			})
		}
	}

	bids = book.Aggregate(bids, q.Precision, book.Bid)
	asks = book.Aggregate(asks, q.Precision, book.Ask)
	bids, asks, totalBid, totalAsk := book.Assemble(bids, asks, q.MaxLevels)

	data := model.DepthData{
		Bids:         bids,
		Asks:         asks,
		CurrentPrice: q.ReferencePrice,
		Protocol:     a.Kind(),
		Pool:         q.Pool,
		ChainID:      q.ChainID,
		Block:        q.BlockNumber,
		BaseToken:    baseMeta,
		QuoteToken:   quoteMeta,
		TotalBidUSD:  totalBid,
		TotalAskUSD:  totalAsk,
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
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

// fetchBins requests the configured radius of bins around the active bin
// in one batch. Empty and unreadable bins are skipped.
func (a *dlmmAdapter) fetchBins(ctx context.Context, q model.Query, pair common.Address, activeID int64) ([]model.Bin, error) {
	pairABI, err := DLMMPairABI()
	if err != nil {
		return nil, err
	}

	radius := int64(a.deps.Config.BinRadius)
	lo := activeID - radius
	if lo < 0 {
		lo = 0
	}
	hi := activeID + radius
	if hi > maxBinID {
		hi = maxBinID
	}

	calls := make([]chain.Call3, 0, hi-lo+1)
	for id := lo; id <= hi; id++ {
		data, err := pairABI.Pack("getBin", big.NewInt(id))
		if err != nil {
			return nil, fmt.Errorf("pack getBin: %w", err)
		}
		calls = append(calls, chain.Call3{Target: pair, AllowFailure: true, CallData: data})
	}

	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, calls)
	if err != nil {
		return nil, err
	}

	var bins []model.Bin
	for i, res := range results {
		id := lo + int64(i)
		values, err := unpackResult(pairABI, "getBin", res)
		if err != nil {
			a.deps.Logger.Debug("bin skipped", zap.Int64("bin", id), zap.Error(err))
			continue
		}
		reserveX, errX := asBigInt(values[0])
		reserveY, errY := asBigInt(values[1])
		if errX != nil || errY != nil {
			continue
		}
		if reserveX.Sign() == 0 && reserveY.Sign() == 0 {
			continue
		}
		bins = append(bins, model.Bin{ID: id, ReserveX: reserveX, ReserveY: reserveY})
	}
	return bins, nil
}

func binAmountSane(x, ceiling float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0 && x <= ceiling
}
