package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/chain"
	"ammdepth/internal/model"
)

// TokenMetaCache caches token metadata by address. Token symbol and
// decimals are immutable, so the cache has no TTL.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// fetchTokenMeta loads symbol and decimals for the given tokens in one
// batch, consulting the cache first. Tokens whose decimals cannot be read
// fall back to 18; a symbol that decodes neither as string nor bytes32 is
// left empty. Neither degrades the query.
func fetchTokenMeta(
	ctx context.Context,
	mc *chain.Multicall,
	blockNumber uint64,
	tokens []common.Address,
	cache *TokenMetaCache,
	logger *zap.Logger,
) (map[common.Address]model.TokenMeta, error) {
	out := make(map[common.Address]model.TokenMeta, len(tokens))

	var missing []common.Address
	for _, token := range tokens {
		if meta, ok := cache.Get(token); ok {
			out[token] = meta
		} else {
			missing = append(missing, token)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	stringABI, err := erc20StringABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	decimalsData, err := stringABI.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("pack decimals: %w", err)
	}
	symbolData, err := stringABI.Pack("symbol")
	if err != nil {
		return nil, fmt.Errorf("pack symbol: %w", err)
	}
	symbol32Data, err := bytes32ABI.Pack("symbol")
	if err != nil {
		return nil, fmt.Errorf("pack bytes32 symbol: %w", err)
	}

	// Three calls per token: decimals, string symbol, bytes32 fallback.
	calls := make([]chain.Call3, 0, len(missing)*3)
	for _, token := range missing {
		calls = append(calls,
			chain.Call3{Target: token, AllowFailure: true, CallData: decimalsData},
			chain.Call3{Target: token, AllowFailure: true, CallData: symbolData},
			chain.Call3{Target: token, AllowFailure: true, CallData: symbol32Data},
		)
	}

	results, err := mc.Aggregate3(ctx, blockNumber, calls)
	if err != nil {
		return nil, err
	}

	for i, token := range missing {
		meta := model.TokenMeta{Address: token.Hex(), Decimals: 18}

		if values, err := unpackResult(stringABI, "decimals", results[i*3]); err == nil {
			if decimals, err := asUint8(values[0]); err == nil {
				meta.Decimals = decimals
			}
		} else {
			logger.Warn("token decimals unreadable, assuming 18",
				zap.String("token", token.Hex()), zap.Error(err))
		}

		if values, err := unpackResult(stringABI, "symbol", results[i*3+1]); err == nil {
			if symbol, ok := values[0].(string); ok {
				meta.Symbol = symbol
			}
		}
		if meta.Symbol == "" {
			if values, err := unpackResult(bytes32ABI, "symbol", results[i*3+2]); err == nil {
				if symbol, ok := bytes32ToString(values[0]); ok {
					meta.Symbol = symbol
				}
			}
		}

		cache.Set(token, meta)
		out[token] = meta
	}
	return out, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
