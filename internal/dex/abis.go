package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Inline ABIs for every pool shape the adapters read. Only view functions:
// this engine reads state, it never writes or follows events.

const clmmPoolABIJSON = `[
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "tickSpacing",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "liquidity",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "int16", "name": "wordPosition", "type": "int16"}],
    "name": "tickBitmap",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "int24", "name": "tick", "type": "int24"}],
    "name": "ticks",
    "outputs": [
      {"internalType": "uint128", "name": "liquidityGross", "type": "uint128"},
      {"internalType": "int128", "name": "liquidityNet", "type": "int128"},
      {"internalType": "uint256", "name": "feeGrowthOutside0X128", "type": "uint256"},
      {"internalType": "uint256", "name": "feeGrowthOutside1X128", "type": "uint256"},
      {"internalType": "int56", "name": "tickCumulativeOutside", "type": "int56"},
      {"internalType": "uint160", "name": "secondsPerLiquidityOutsideX128", "type": "uint160"},
      {"internalType": "uint32", "name": "secondsOutside", "type": "uint32"},
      {"internalType": "bool", "name": "initialized", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const dlmmPairABIJSON = `[
  {
    "inputs": [],
    "name": "getActiveId",
    "outputs": [{"internalType": "uint24", "name": "activeId", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getBinStep",
    "outputs": [{"internalType": "uint16", "name": "binStep", "type": "uint16"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getTokenX",
    "outputs": [{"internalType": "address", "name": "tokenX", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getTokenY",
    "outputs": [{"internalType": "address", "name": "tokenY", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint24", "name": "id", "type": "uint24"}],
    "name": "getBin",
    "outputs": [
      {"internalType": "uint128", "name": "binReserveX", "type": "uint128"},
      {"internalType": "uint128", "name": "binReserveY", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const pairABIJSON = `[
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getReserves",
    "outputs": [
      {"internalType": "uint112", "name": "reserve0", "type": "uint112"},
      {"internalType": "uint112", "name": "reserve1", "type": "uint112"},
      {"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const curveABIJSON = `[
  {
    "inputs": [],
    "name": "curveState",
    "outputs": [
      {"internalType": "uint256", "name": "circulatingSupply", "type": "uint256"},
      {"internalType": "uint256", "name": "initialPrice", "type": "uint256"},
      {"internalType": "uint256", "name": "slope", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type parsedABI struct {
	abi  abi.ABI
	once sync.Once
	err  error
	json string
}

func (p *parsedABI) get() (abi.ABI, error) {
	p.once.Do(func() {
		p.abi, p.err = abi.JSON(strings.NewReader(p.json))
	})
	return p.abi, p.err
}

var (
	clmmPoolABIHolder    = &parsedABI{json: clmmPoolABIJSON}
	dlmmPairABIHolder    = &parsedABI{json: dlmmPairABIJSON}
	pairABIHolder        = &parsedABI{json: pairABIJSON}
	curveABIHolder       = &parsedABI{json: curveABIJSON}
	erc20StringABIHolder = &parsedABI{json: erc20ABIStringJSON}
	erc20Bytes32Holder   = &parsedABI{json: erc20ABIBytes32JSON}
)

// CLMMPoolABI returns the parsed concentrated-liquidity pool ABI.
func CLMMPoolABI() (abi.ABI, error) { return clmmPoolABIHolder.get() }

// DLMMPairABI returns the parsed bin-liquidity pair ABI.
func DLMMPairABI() (abi.ABI, error) { return dlmmPairABIHolder.get() }

// PairABI returns the parsed constant-product pair ABI.
func PairABI() (abi.ABI, error) { return pairABIHolder.get() }

// CurveABI returns the parsed bonding-curve ABI.
func CurveABI() (abi.ABI, error) { return curveABIHolder.get() }

func erc20StringABI() (abi.ABI, error)  { return erc20StringABIHolder.get() }
func erc20Bytes32ABI() (abi.ABI, error) { return erc20Bytes32Holder.get() }
