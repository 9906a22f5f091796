package registry

// Canonical Uniswap V3-compatible contracts used by swap execution/quoting.
// Today this map includes Taiko deployments and can be extended chain-by-chain.
var uniswapV3ContractsByChainID = map[int64]struct {
	QuoterV2 string
	Router   string
}{
	167000: {
		QuoterV2: "0xcBa70D57be34aA26557B8E80135a9B7754680aDb",
		Router:   "0x1A0c3a0Cfd1791FAC7798FA2b05208B66aaadfeD",
	},
	167013: {
		QuoterV2: "0xAC8D93657DCc5C0dE9d9AF2772aF9eA3A032a1C6",
		Router:   "0x482233e4DBD56853530fA1918157CE59B60dF230",
	},
}

func UniswapV3Contracts(chainID int64) (quoterV2 string, router string, ok bool) {
	contracts, ok := uniswapV3ContractsByChainID[chainID]
	if !ok {
		return "", "", false
	}
	return contracts.QuoterV2, contracts.Router, true
}

// Canonical Aave V3 PoolAddressesProvider contracts used by planners.
var aavePoolAddressProviderByChainID = map[int64]string{
	1:     "0x2f39d218133AFaB8F2B819B1066c7E434Ad94E9e", // Ethereum
	10:    "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb", // Optimism
	137:   "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb", // Polygon
	8453:  "0xe20fCBdBfFC4Dd138cE8b2E6FBb6CB49777ad64D", // Base
	42161: "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb", // Arbitrum
	43114: "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb", // Avalanche
}

func AavePoolAddressProvider(chainID int64) (string, bool) {
	value, ok := aavePoolAddressProviderByChainID[chainID]
	return value, ok
}

// Canonical TaikoSwap (Uniswap V3 fork) contracts, kept distinct from the
// generic Uniswap V3 table above since TaikoSwap quoting/routing is reached
// through its own provider rather than the shared Uniswap client.
var taikoSwapContractsByChainID = map[int64]struct {
	QuoterV2 string
	Router   string
}{
	167000: {
		QuoterV2: "0xcBa70D57be34aA26557B8E80135a9B7754680aDb",
		Router:   "0x1A0c3a0Cfd1791FAC7798FA2b05208B66aaadfeD",
	},
	167013: {
		QuoterV2: "0xAC8D93657DCc5C0dE9d9AF2772aF9eA3A032a1C6",
		Router:   "0x482233e4DBD56853530fA1918157CE59B60dF230",
	},
}

func TaikoSwapContracts(chainID int64) (quoterV2 string, router string, ok bool) {
	contracts, ok := taikoSwapContractsByChainID[chainID]
	if !ok {
		return "", "", false
	}
	return contracts.QuoterV2, contracts.Router, true
}

// ChainIDHyperEVM and ChainIDArbitrumOne are the two chains the rate-swap
// venue's native HYPE bridge moves between. LZEidArbitrum/LZEidHyperEVM are
// their LayerZero v2 endpoint ids, distinct from the EVM chain id.
const (
	ChainIDHyperEVM    int64  = 999
	ChainIDArbitrumOne int64  = 42161
	LZEidArbitrum      uint32 = 30110
	LZEidHyperEVM      uint32 = 30367
)

// BorosMarketHubByChainID maps a chain id to the rate-swap venue's
// MarketHub contract: the single on-chain entry point this tree calls
// directly for the withdrawal-cooldown read and finalize write, everything
// else being server-built calldata sent to whatever `to` the API returns.
var borosMarketHubByChainID = map[int64]string{
	ChainIDArbitrumOne: "0x1beac904570a8509eddbf7ad0f809d1c3d1d8d1f",
}

// BorosMarketHub returns the MarketHub contract address for chainID.
func BorosMarketHub(chainID int64) (string, bool) {
	value, ok := borosMarketHubByChainID[chainID]
	return value, ok
}

// BorosRouterByChainID maps a chain id to the fixed router address every
// entry of a multi-tx `calldatas` payload is sent to in sequence.
var borosRouterByChainID = map[int64]string{
	ChainIDArbitrumOne: "0xe93aeb79b76fdcd81b77a04e11625a010dc2e23c",
}

// BorosRouter returns the fixed router address multi-call calldata batches
// are broadcast to on chainID.
func BorosRouter(chainID int64) (string, bool) {
	value, ok := borosRouterByChainID[chainID]
	return value, ok
}

// HypeOFTByChainID maps a chain id to the LayerZero OFT contract used to
// bridge HYPE between its native chain (HyperEVM) and its ERC20-wrapped
// representation on Arbitrum.
var hypeOFTByChainID = map[int64]string{
	ChainIDHyperEVM:    "0xc3772d284f06f179c2efa072e80ee4555664cef3",
	ChainIDArbitrumOne: "0xf9123b8d59a2973d239ed862110a8be9d4c45038",
}

// HypeOFT returns the OFT contract address for chainID.
func HypeOFT(chainID int64) (string, bool) {
	value, ok := hypeOFTByChainID[chainID]
	return value, ok
}

// multicall3Address is deployed at the same address on effectively every
// EVM chain via the canonical deterministic-deployer transaction, so one
// constant covers every chain id the gateway is configured for.
const multicall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"

// Multicall3 returns the canonical Multicall3 contract address, the same on
// every chain this tree talks to.
func Multicall3(chainID int64) (string, bool) {
	if chainID == 0 {
		return "", false
	}
	return multicall3Address, true
}

// Canonical Morpho Blue singleton + Universal Rewards Distributor per chain.
var morphoBlueByChainID = map[int64]string{
	1:     "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb",
	8453:  "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb",
	42161: "0x6c247b1F6182318877311737BaC0844bAa518F5e",
}

// MorphoBlue returns the Morpho Blue singleton contract address for chainID.
func MorphoBlue(chainID int64) (string, bool) {
	value, ok := morphoBlueByChainID[chainID]
	return value, ok
}

var morphoURDByChainID = map[int64]string{
	1:     "0x330eefa8a787552DC5cAd3C3cA644844B1E61Ddb",
	8453:  "0x330eefa8a787552DC5cAd3C3cA644844B1E61Ddb",
	42161: "0x330eefa8a787552DC5cAd3C3cA644844B1E61Ddb",
}

// MorphoRewardsDistributor returns the Universal Rewards Distributor
// contract address for chainID.
func MorphoRewardsDistributor(chainID int64) (string, bool) {
	value, ok := morphoURDByChainID[chainID]
	return value, ok
}
