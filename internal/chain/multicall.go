package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"ammdepth/internal/model"
)

// DefaultMulticallAddress is the canonical Multicall3 deployment, present at
// the same address on every chain this engine targets.
const DefaultMulticallAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"

const multicallABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bool", "name": "allowFailure", "type": "bool"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Call3[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "aggregate3",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	multicallABI     abi.ABI
	multicallABIOnce sync.Once
	multicallABIErr  error
)

// MulticallABI returns the parsed Multicall3 ABI.
func MulticallABI() (abi.ABI, error) {
	multicallABIOnce.Do(func() {
		multicallABI, multicallABIErr = abi.JSON(strings.NewReader(multicallABIJSON))
	})
	return multicallABI, multicallABIErr
}

// Call3 is one read request inside a batch. AllowFailure lets the contract
// report the individual revert instead of reverting the whole batch.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result is the outcome of one call, aligned to the input order.
type Result struct {
	Success    bool
	ReturnData []byte
}

// MulticallConfig tunes batching and retry behavior.
type MulticallConfig struct {
	// Address overrides the Multicall3 contract address.
	Address string
	// MaxBatchSize caps calls per aggregate3 round trip.
	MaxBatchSize int
	// BatchTimeout bounds a single round trip. It should be shorter than
	// the overall query deadline so at least one retry fits.
	BatchTimeout time.Duration
	// MaxRetries bounds transport-level retries per chunk.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
	// BreakerEnabled trips the circuit after sustained transport failure.
	BreakerEnabled bool
}

func (c MulticallConfig) withDefaults() MulticallConfig {
	if c.Address == "" {
		c.Address = DefaultMulticallAddress
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 200
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
	return c
}

// Multicall groups independent read calls into aggregate3 batches. It is
// stateless across invocations apart from the optional circuit breaker.
type Multicall struct {
	caller   Caller
	contract common.Address
	cfg      MulticallConfig
	logger   *zap.Logger
	breaker  *gobreaker.CircuitBreaker
}

// NewMulticall builds a batch scheduler on top of a Caller.
func NewMulticall(caller Caller, cfg MulticallConfig, logger *zap.Logger) *Multicall {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Multicall{
		caller:   caller,
		contract: common.HexToAddress(cfg.Address),
		cfg:      cfg,
		logger:   logger,
	}
	if cfg.BreakerEnabled {
		settings := gobreaker.Settings{
			Name:    "multicall",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
		m.breaker = gobreaker.NewCircuitBreaker(settings)
	}
	return m
}

// Aggregate3 executes the calls as grouped batches and returns results
// aligned to input order. Individual reverts come back as Success=false and
// are never retried; transport failures retry the whole chunk with backoff
// and surface as *model.TransportError once retries exhaust.
func (m *Multicall) Aggregate3(ctx context.Context, blockNumber uint64, calls []Call3) ([]Result, error) {
	if m.caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(calls))
	for start := 0; start < len(calls); start += m.cfg.MaxBatchSize {
		end := start + m.cfg.MaxBatchSize
		if end > len(calls) {
			end = len(calls)
		}

		chunk, err := m.executeChunk(ctx, blockNumber, calls[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (m *Multicall) executeChunk(ctx context.Context, blockNumber uint64, calls []Call3) ([]Result, error) {
	mcABI, err := MulticallABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}

	packed := make([]struct {
		Target       common.Address
		AllowFailure bool
		CallData     []byte
	}, len(calls))
	for i, call := range calls {
		packed[i].Target = call.Target
		packed[i].AllowFailure = call.AllowFailure
		packed[i].CallData = call.CallData
	}

	data, err := mcABI.Pack("aggregate3", packed)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}
	msg := ethereum.CallMsg{To: &m.contract, Data: data}

	var resp []byte
	err = withRetry(ctx, m.cfg.MaxRetries, m.cfg.RetryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.BatchTimeout)
		defer cancel()

		call := func() ([]byte, error) {
			return m.caller.CallContract(callCtx, msg, blockPtr)
		}

		var callErr error
		if m.breaker != nil {
			var out interface{}
			out, callErr = m.breaker.Execute(func() (interface{}, error) {
				return call()
			})
			if callErr == nil {
				resp = out.([]byte)
			}
		} else {
			resp, callErr = call()
		}
		if callErr != nil {
			m.logger.Warn("multicall chunk failed",
				zap.Int("calls", len(calls)),
				zap.Uint64("block", blockNumber),
				zap.Error(callErr),
			)
		}
		return callErr
	})
	if err != nil {
		return nil, &model.TransportError{Op: "aggregate3", Err: err}
	}

	values, err := mcABI.Unpack("aggregate3", resp)
	if err != nil {
		return nil, &model.TransportError{Op: "aggregate3 decode", Err: err}
	}
	decoded := *abi.ConvertType(values[0], new([]struct {
		Success    bool
		ReturnData []byte
	})).(*[]struct {
		Success    bool
		ReturnData []byte
	})
	if len(decoded) != len(calls) {
		return nil, &model.TransportError{
			Op:  "aggregate3 decode",
			Err: fmt.Errorf("result count %d does not match call count %d", len(decoded), len(calls)),
		}
	}

	results := make([]Result, len(decoded))
	for i, entry := range decoded {
		results[i] = Result{Success: entry.Success, ReturnData: entry.ReturnData}
	}
	return results, nil
}
