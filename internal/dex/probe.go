package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/chain"
	"ammdepth/internal/model"
)

// Probe detects a pool's protocol family from its structural signature:
// one batch tries the distinguishing accessor of each family, and the
// first that answers decides. Declared metadata should make this a last
// resort; a probe per query would waste a round trip on known pools.
func (r *Registry) Probe(ctx context.Context, pool common.Address, blockNumber uint64) (model.ProtocolKind, error) {
	clmmABI, err := CLMMPoolABI()
	if err != nil {
		return model.KindUnknown, err
	}
	dlmmABI, err := DLMMPairABI()
	if err != nil {
		return model.KindUnknown, err
	}
	pairABI, err := PairABI()
	if err != nil {
		return model.KindUnknown, err
	}
	curveABI, err := CurveABI()
	if err != nil {
		return model.KindUnknown, err
	}

	probes := []struct {
		kind   model.ProtocolKind
		parsed abi.ABI
		method string
	}{
		{model.KindTickCLMM, clmmABI, "slot0"},
		{model.KindBinDLMM, dlmmABI, "getActiveId"},
		{model.KindConstantProduct, pairABI, "getReserves"},
		{model.KindBondingCurve, curveABI, "curveState"},
	}

	calls := make([]chain.Call3, 0, len(probes))
	for _, p := range probes {
		data, err := p.parsed.Pack(p.method)
		if err != nil {
			return model.KindUnknown, fmt.Errorf("pack %s: %w", p.method, err)
		}
		calls = append(calls, chain.Call3{Target: pool, AllowFailure: true, CallData: data})
	}

	results, err := r.deps.Multicall.Aggregate3(ctx, blockNumber, calls)
	if err != nil {
		return model.KindUnknown, err
	}

	for i, p := range probes {
		if !results[i].Success || len(results[i].ReturnData) == 0 {
			continue
		}
		r.deps.Logger.Debug("protocol probed",
			zap.String("pool", pool.Hex()),
			zap.String("kind", string(p.kind)),
		)
		return p.kind, nil
	}
	return model.KindUnknown, fmt.Errorf("%w: pool %s answers no known accessor", model.ErrUnsupportedProtocol, pool.Hex())
}
