package dex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/model"
)

// Adapter turns one AMM family's on-chain state into the common DepthData
// shape. Undecodable pool state degrades to a typed empty result with a
// reason; only transport failures and unsupported protocols escape.
type Adapter interface {
	Kind() model.ProtocolKind
	ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error)
}

// Config tunes discovery and the level pipeline, shared by all adapters.
type Config struct {
	// TickWordRadius bounds bitmap discovery to this many 256-tick words on
	// each side of the current word. Zero scans the full valid range.
	TickWordRadius int
	// BinRadius is how many bins each side of the active bin to fetch.
	BinRadius int
	// Book bounds subdivision and sanity filtering.
	Book book.Config
}

func (c Config) withDefaults() Config {
	if c.TickWordRadius < 0 {
		c.TickWordRadius = 0
	}
	if c.BinRadius <= 0 {
		c.BinRadius = 500
	}
	c.Book = c.Book.WithDefaults()
	return c
}

// Deps are the collaborators every adapter shares.
type Deps struct {
	Multicall *chain.Multicall
	Tokens    *TokenMetaCache
	Logger    *zap.Logger
	Config    Config
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Tokens == nil {
		d.Tokens = NewTokenMetaCache()
	}
	d.Config = d.Config.withDefaults()
	return d
}

// Registry dispatches queries to adapters by protocol kind, probing the
// pool's structural signature when the kind is not declared.
type Registry struct {
	deps     Deps
	adapters map[model.ProtocolKind]Adapter
}

// NewRegistry builds a registry with all four protocol adapters.
func NewRegistry(deps Deps) *Registry {
	deps = deps.normalized()
	r := &Registry{
		deps:     deps,
		adapters: make(map[model.ProtocolKind]Adapter),
	}
	for _, a := range []Adapter{
		&clmmAdapter{deps: deps},
		&dlmmAdapter{deps: deps},
		&constProductAdapter{deps: deps},
		&bondingCurveAdapter{deps: deps},
	} {
		r.adapters[a.Kind()] = a
	}
	return r
}

// Resolve returns the adapter for the query, probing when the kind is
// unknown. Probing resolves once per query; declared metadata wins so
// repeated failed calls are never the steady state.
func (r *Registry) Resolve(ctx context.Context, q model.Query) (Adapter, error) {
	kind := q.Kind
	if !kind.Valid() {
		probed, err := r.Probe(ctx, common.HexToAddress(q.Pool), q.BlockNumber)
		if err != nil {
			return nil, err
		}
		kind = probed
	}

	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedProtocol, kind)
	}
	return adapter, nil
}

// emptyDepth is the typed degraded result: the pool answered but its state
// could not become a book.
func emptyDepth(q model.Query, kind model.ProtocolKind, reason string) model.DepthData {
	return model.DepthData{
		Bids:         []model.LiquidityLevel{},
		Asks:         []model.LiquidityLevel{},
		CurrentPrice: q.ReferencePrice,
		Protocol:     kind,
		Pool:         q.Pool,
		ChainID:      q.ChainID,
		Block:        q.BlockNumber,
		ComputedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Empty:        true,
		Reason:       reason,
	}
}

func packCall(parsed abi.ABI, target common.Address, method string, args ...interface{}) (chain.Call3, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return chain.Call3{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call3{Target: target, AllowFailure: true, CallData: data}, nil
}

// unpackResult decodes one multicall entry. A failed or empty entry returns
// a DecodeError the caller skips or turns into a degraded result; it is a
// protocol-level revert, not a transport condition.
func unpackResult(parsed abi.ABI, method string, res chain.Result) ([]interface{}, error) {
	if !res.Success {
		return nil, &model.DecodeError{What: method, Err: fmt.Errorf("call reverted")}
	}
	if len(res.ReturnData) == 0 {
		return nil, &model.DecodeError{What: method, Err: fmt.Errorf("empty return data")}
	}
	values, err := parsed.Unpack(method, res.ReturnData)
	if err != nil {
		return nil, &model.DecodeError{What: method, Err: err}
	}
	return values, nil
}
