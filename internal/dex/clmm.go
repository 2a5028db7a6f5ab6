package dex

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/model"
	"ammdepth/internal/tickmath"
)

// clmmAdapter reconstructs the book of a concentrated-liquidity tick pool:
// bitmap discovery of initialized ticks, batched tick reads, a signed-delta
// walk out from the current tick, then subdivision into price buckets.
type clmmAdapter struct {
	deps Deps
}

func (a *clmmAdapter) Kind() model.ProtocolKind {
	return model.KindTickCLMM
}

func (a *clmmAdapter) ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error) {
	pool := common.HexToAddress(q.Pool)
	poolABI, err := CLMMPoolABI()
	if err != nil {
		return model.DepthData{}, fmt.Errorf("parse pool abi: %w", err)
	}

	state, baseMeta, quoteMeta, reason, err := a.fetchPoolState(ctx, q, pool)
	if err != nil {
		return model.DepthData{}, err
	}
	if reason != "" {
		return emptyDepth(q, a.Kind(), reason), nil
	}

	tickIndexes, err := a.discoverTicks(ctx, q, pool, poolABI, state)
	if err != nil {
		return model.DepthData{}, err
	}

	records, err := a.fetchTickRecords(ctx, q, pool, poolABI, tickIndexes)
	if err != nil {
		return model.DepthData{}, err
	}

	// Full-coverage runs can cross-check the core invariant: liquidityNet
	// sums to zero over the complete tick set. A nonzero sum means the
	// fetched state is inconsistent, and a book built from it would lie.
	if a.deps.Config.TickWordRadius == 0 && len(records) > 0 {
		sum := new(big.Int)
		for _, r := range records {
			sum.Add(sum, r.LiquidityNet)
		}
		if sum.Sign() != 0 {
			return model.DepthData{}, &model.DecodeError{
				What: "tick set",
				Err:  fmt.Errorf("liquidityNet sums to %s, want 0", sum),
			}
		}
	}

	conv := tickmath.NewConverter(q.ReferencePrice, state.Tick)
	conv.PriceFloor = a.deps.Config.Book.PriceFloor
	conv.PriceCeil = a.deps.Config.Book.PriceCeil

	askIntervals := book.WalkUp(records, state.Tick, state.Liquidity, q.MaxLevels)
	bidIntervals := book.WalkDown(records, state.Tick, state.Liquidity, q.MaxLevels)

	var bids, asks []model.LiquidityLevel
	for _, iv := range askIntervals {
		asks = append(asks, book.Subdivide(iv, book.Ask, conv, q.Precision,
			baseMeta.Decimals, quoteMeta.Decimals, q.QuoteUSD, a.deps.Config.Book)...)
	}
	for _, iv := range bidIntervals {
		bids = append(bids, book.Subdivide(iv, book.Bid, conv, q.Precision,
			baseMeta.Decimals, quoteMeta.Decimals, q.QuoteUSD, a.deps.Config.Book)...)
	}
	bids = book.Aggregate(bids, q.Precision, book.Bid)
	asks = book.Aggregate(asks, q.Precision, book.Ask)
	bids, asks, totalBid, totalAsk := book.Assemble(bids, asks, q.MaxLevels)

	baseReserve, quoteReserve := tickmath.VirtualReserves(state.SqrtPriceX96, state.Liquidity)

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
		BaseReserve:  scaleToFloat(baseReserve, baseMeta.Decimals),
		QuoteReserve: scaleToFloat(quoteReserve, quoteMeta.Decimals),
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

// fetchPoolState reads slot0, liquidity, spacing, fee, and both tokens in
// one batch. A reason string (instead of an error) marks states that
// degrade to a typed empty result.
func (a *clmmAdapter) fetchPoolState(ctx context.Context, q model.Query, pool common.Address) (model.PoolState, model.TokenMeta, model.TokenMeta, string, error) {
	poolABI, err := CLMMPoolABI()
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "", err
	}

	methods := []string{"slot0", "liquidity", "tickSpacing", "fee", "token0", "token1"}
	calls := make([]chain.Call3, 0, len(methods))
	for _, method := range methods {
		call, err := packCall(poolABI, pool, method)
		if err != nil {
			return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "", err
		}
		calls = append(calls, call)
	}

	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, calls)
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "", err
	}

	slot0Values, err := unpackResult(poolABI, "slot0", results[0])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("slot0 unreadable: %v", err), nil
	}
	sqrtPrice, errSqrt := asBigInt(slot0Values[0])
	tickBig, errTick := asBigInt(slot0Values[1])
	if errSqrt != nil || errTick != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "slot0 fields unreadable", nil
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("current tick: %v", err), nil
	}

	liquidityValues, err := unpackResult(poolABI, "liquidity", results[1])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("liquidity unreadable: %v", err), nil
	}
	liquidity, err := asBigInt(liquidityValues[0])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "liquidity unreadable", nil
	}

	spacingValues, err := unpackResult(poolABI, "tickSpacing", results[2])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("tickSpacing unreadable: %v", err), nil
	}
	spacingBig, err := asBigInt(spacingValues[0])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "tickSpacing unreadable", nil
	}
	spacing, err := int24FromBig(spacingBig)
	if err != nil || spacing <= 0 {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "invalid tick spacing", nil
	}

	state := model.PoolState{
		Tick:         int64(tick),
		Liquidity:    liquidity,
		SqrtPriceX96: sqrtPrice,
		TickSpacing:  int64(spacing),
	}
	if feeValues, err := unpackResult(poolABI, "fee", results[3]); err == nil {
		if fee, err := asBigInt(feeValues[0]); err == nil {
			state.FeeOrStep = uint32(fee.Uint64())
		}
	}

	token0Values, err := unpackResult(poolABI, "token0", results[4])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("token0 unreadable: %v", err), nil
	}
	token0, err := asAddress(token0Values[0])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "token0 unreadable", nil
	}
	token1Values, err := unpackResult(poolABI, "token1", results[5])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Sprintf("token1 unreadable: %v", err), nil
	}
	token1, err := asAddress(token1Values[0])
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "token1 unreadable", nil
	}

	metas, err := fetchTokenMeta(ctx, a.deps.Multicall, q.BlockNumber, []common.Address{token0, token1}, a.deps.Tokens, a.deps.Logger)
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, "", err
	}
	return state, metas[token0], metas[token1], "", nil
}

// discoverTicks fetches the bitmap words covering the configured range and
// decodes them into a sorted list of initialized tick indices.
func (a *clmmAdapter) discoverTicks(ctx context.Context, q model.Query, pool common.Address, poolABI abi.ABI, state model.PoolState) ([]int64, error) {
	loWord, hiWord := wordRange(state.Tick, state.TickSpacing, a.deps.Config.TickWordRadius)

	calls := make([]chain.Call3, 0, int(hiWord)-int(loWord)+1)
	for word := int(loWord); word <= int(hiWord); word++ {
		data, err := poolABI.Pack("tickBitmap", int16(word))
		if err != nil {
			return nil, fmt.Errorf("pack tickBitmap: %w", err)
		}
		calls = append(calls, chain.Call3{Target: pool, AllowFailure: true, CallData: data})
	}

	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, calls)
	if err != nil {
		return nil, err
	}

	var ticks []int64
	for i, res := range results {
		word := int16(int(loWord) + i)
		values, err := unpackResult(poolABI, "tickBitmap", res)
		if err != nil {
			// Malformed or reverted word reads as empty.
			a.deps.Logger.Debug("bitmap word skipped",
				zap.Int16("word", word), zap.Error(err))
			continue
		}
		bitmap, err := asBigInt(values[0])
		if err != nil {
			continue
		}
		ticks = append(ticks, decodeBitmapWord(bitmap, word, state.TickSpacing)...)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return ticks, nil
}

// fetchTickRecords batches ticks(t) for every initialized tick.
// Individual failures skip that tick only.
func (a *clmmAdapter) fetchTickRecords(ctx context.Context, q model.Query, pool common.Address, poolABI abi.ABI, tickIndexes []int64) ([]model.TickRecord, error) {
	if len(tickIndexes) == 0 {
		return nil, nil
	}

	calls := make([]chain.Call3, 0, len(tickIndexes))
	for _, tick := range tickIndexes {
		data, err := poolABI.Pack("ticks", big.NewInt(tick))
		if err != nil {
			return nil, fmt.Errorf("pack ticks: %w", err)
		}
		calls = append(calls, chain.Call3{Target: pool, AllowFailure: true, CallData: data})
	}

	results, err := a.deps.Multicall.Aggregate3(ctx, q.BlockNumber, calls)
	if err != nil {
		return nil, err
	}

	records := make([]model.TickRecord, 0, len(tickIndexes))
	for i, res := range results {
		values, err := unpackResult(poolABI, "ticks", res)
		if err != nil {
			a.deps.Logger.Debug("tick record skipped",
				zap.Int64("tick", tickIndexes[i]), zap.Error(err))
			continue
		}
		gross, errGross := asBigInt(values[0])
		net, errNet := asBigInt(values[1])
		if errGross != nil || errNet != nil {
			continue
		}
		records = append(records, model.TickRecord{
			Index:          tickIndexes[i],
			LiquidityGross: gross,
			LiquidityNet:   net,
		})
	}
	return records, nil
}

func scaleToFloat(raw *big.Int, decimals uint8) float64 {
	value, _ := new(big.Float).SetInt(raw).Float64()
	return value / math.Pow10(int(decimals))
}
