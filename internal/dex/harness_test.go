package dex

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammdepth/internal/chain"
)

// scriptedCaller answers aggregate3 batches from a canned table keyed by
// target and calldata. Calls with no entry revert, which is exactly how an
// address without the probed accessor behaves.
type scriptedCaller struct {
	responses map[string][]byte
}

func respKey(target common.Address, data []byte) string {
	return target.Hex() + "/" + common.Bytes2Hex(data)
}

func (s *scriptedCaller) set(target common.Address, data, ret []byte) {
	if s.responses == nil {
		s.responses = make(map[string][]byte)
	}
	s.responses[respKey(target, data)] = ret
}

func (s *scriptedCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	mcABI, err := chain.MulticallABI()
	if err != nil {
		return nil, err
	}
	method := mcABI.Methods["aggregate3"]

	values, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(values[0], new([]struct {
		Target       common.Address
		AllowFailure bool
		CallData     []byte
	})).(*[]struct {
		Target       common.Address
		AllowFailure bool
		CallData     []byte
	})

	results := make([]struct {
		Success    bool
		ReturnData []byte
	}, len(calls))
	for i, call := range calls {
		if ret, ok := s.responses[respKey(call.Target, call.CallData)]; ok {
			results[i].Success = true
			results[i].ReturnData = ret
		}
	}
	return method.Outputs.Pack(results)
}

func testDeps(t *testing.T, caller chain.Caller, cfg Config) Deps {
	t.Helper()
	return Deps{
		Multicall: chain.NewMulticall(caller, chain.MulticallConfig{}, nil),
		Tokens:    NewTokenMetaCache(),
		Logger:    zap.NewNop(),
		Config:    cfg,
	}
}

func mustPack(t *testing.T, parsed abi.ABI, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return data
}

func mustPackReturn(t *testing.T, parsed abi.ABI, method string, values ...interface{}) []byte {
	t.Helper()
	data, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s return: %v", method, err)
	}
	return data
}

func mustABI(t *testing.T, get func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := get()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return parsed
}

// scriptERC20 registers decimals and symbol responses for a token.
func scriptERC20(t *testing.T, sc *scriptedCaller, token common.Address, decimals uint8, symbol string) {
	t.Helper()
	stringABI := mustABI(t, erc20StringABI)
	sc.set(token, mustPack(t, stringABI, "decimals"), mustPackReturn(t, stringABI, "decimals", decimals))
	sc.set(token, mustPack(t, stringABI, "symbol"), mustPackReturn(t, stringABI, "symbol", symbol))
}
