package dex

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

// defaultStepFraction sizes synthetic price buckets when the caller gives
// no precision: one thousandth of the current price per level.
const defaultStepFraction = 0.001

// constProductAdapter synthesizes a book from an x*y=k pair. The pool has
// no discrete ticks; liquidity at any price follows analytically from the
// invariant, so each level integrates the reserve curve over its bucket.
type constProductAdapter struct {
	deps Deps
}

func (a *constProductAdapter) Kind() model.ProtocolKind {
	return model.KindConstantProduct
}

func (a *constProductAdapter) ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error) {
	pair := common.HexToAddress(q.Pool)
	pairABI, err := PairABI()
	if err != nil {
		return model.DepthData{}, fmt.Errorf("parse pair abi: %w", err)
	}

	methods := []string{"getReserves", "token0", "token1"}
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

	reserveValues, err := unpackResult(pairABI, "getReserves", results[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("reserves unreadable: %v", err)), nil
	}
	reserve0, err0 := asBigInt(reserveValues[0])
	reserve1, err1 := asBigInt(reserveValues[1])
	if err0 != nil || err1 != nil {
		return emptyDepth(q, a.Kind(), "reserves unreadable"), nil
	}

	token0Values, err := unpackResult(pairABI, "token0", results[1])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("token0 unreadable: %v", err)), nil
	}
	token0, err := asAddress(token0Values[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), "token0 unreadable"), nil
	}
	token1Values, err := unpackResult(pairABI, "token1", results[2])
	if err != nil {
		return emptyDepth(q, a.Kind(), fmt.Sprintf("token1 unreadable: %v", err)), nil
	}
	token1, err := asAddress(token1Values[0])
	if err != nil {
		return emptyDepth(q, a.Kind(), "token1 unreadable"), nil
	}

	metas, err := fetchTokenMeta(ctx, a.deps.Multicall, q.BlockNumber, []common.Address{token0, token1}, a.deps.Tokens, a.deps.Logger)
	if err != nil {
		return model.DepthData{}, err
	}
	baseMeta, quoteMeta := metas[token0], metas[token1]

	base := scaleToFloat(reserve0, baseMeta.Decimals)
	quote := scaleToFloat(reserve1, quoteMeta.Decimals)
	if base <= 0 || quote <= 0 {
		return a.finish(q, nil, nil, baseMeta, quoteMeta, base, quote), nil
	}

	// Anchor the pool's own price grid to the caller's reference price:
	// display price p maps to native price p/scale, so the reserve curves
	// x(p)=sqrt(k*scale/p) and y(p)=sqrt(k*p/scale) stay consistent with
	// the invariant while pricing in quote units.
	k := base * quote
	nativePrice := quote / base
	scale := q.ReferencePrice / nativePrice
	baseCurve := math.Sqrt(k * scale)
	quoteCurve := math.Sqrt(k / scale)

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

	rawLiquidity := new(big.Int).Sqrt(new(big.Int).Mul(reserve0, reserve1))

	var asks []model.LiquidityLevel
	for i := 0; i < q.MaxLevels; i++ {
		lo := q.ReferencePrice + float64(i)*step
		hi := lo + step
		baseAmount := baseCurve * (1/math.Sqrt(lo) - 1/math.Sqrt(hi))
		quoteAmount := quoteCurve * (math.Sqrt(hi) - math.Sqrt(lo))
		if !binAmountSane(baseAmount, cfg.MaxTokenAmount) {
			continue
		}
		asks = append(asks, model.LiquidityLevel{
			PriceLower:       lo,
			PriceUpper:       hi,
			TickLower:        conv.PriceToTick(lo),
			TickUpper:        conv.PriceToTick(hi),
			Liquidity:        rawLiquidity.String(),
			BaseTokenAmount:  baseAmount,
			QuoteTokenAmount: quoteAmount,
			LiquidityUSD:     quoteAmount * usdFactor,
		})
	}

	var bids []model.LiquidityLevel
	for i := 0; i < q.MaxLevels; i++ {
		hi := q.ReferencePrice - float64(i)*step
		lo := hi - step
		if lo <= 0 {
			break
		}
		baseAmount := baseCurve * (1/math.Sqrt(lo) - 1/math.Sqrt(hi))
		quoteAmount := quoteCurve * (math.Sqrt(hi) - math.Sqrt(lo))
		if !binAmountSane(quoteAmount, cfg.MaxTokenAmount) {
			continue
		}
		bids = append(bids, model.LiquidityLevel{
			PriceLower:       lo,
			PriceUpper:       hi,
			TickLower:        conv.PriceToTick(lo),
			TickUpper:        conv.PriceToTick(hi),
			Liquidity:        rawLiquidity.String(),
			BaseTokenAmount:  baseAmount,
			QuoteTokenAmount: quoteAmount,
			LiquidityUSD:     quoteAmount * usdFactor,
		})
	}

	return a.finish(q, bids, asks, baseMeta, quoteMeta, base, quote), nil
}

func (a *constProductAdapter) finish(
	q model.Query,
	bids, asks []model.LiquidityLevel,
	baseMeta, quoteMeta model.TokenMeta,
	baseReserve, quoteReserve float64,
) model.DepthData {
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
	return data
}
