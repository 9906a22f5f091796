// MorphoAdapter implements adapter.LendingPoolAdapter for Morpho Blue: an
// immutable, oracle-and-IRM-pluggable money market with no enumerable
// on-chain market list. Market discovery reuses the teacher's GraphQL index
// (api.morpho.org) the way internal/execution/planner/morpho.go already
// does for single-market lookups; live balances and market totals come from
// the Morpho contract itself through the same multicall lens style as Aave.
package lendingpool

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/httpx"
	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
	"github.com/wayfinder-paths/adapter-runtime/internal/registry"
)

var (
	morphoBlueReadABI = calldata.ParseABI(registry.MorphoBlueABI)
	morphoURDABI      = calldata.ParseABI(registry.MorphoURDABI)
)

// morphoVirtualShares/morphoVirtualAssets are Morpho Blue's fixed virtual
// liquidity offsets (MathLib.sol), added to every share<->asset conversion
// to avoid a division by zero on an empty market and to make share
// inflation attacks unprofitable.
var (
	morphoVirtualShares = big.NewInt(1_000_000)
	morphoVirtualAssets = big.NewInt(1)
)

const morphoGraphQLDefaultEndpoint = "https://api.morpho.org/graphql"

// MorphoAdapter implements adapter.LendingPoolAdapter against Morpho Blue,
// one singleton contract per chain plus an off-chain GraphQL index for
// market discovery and a Universal Rewards Distributor per chain.
type MorphoAdapter struct {
	Gateway       *chain.Gateway
	Multicall     map[int64]common.Address // chain id -> Multicall contract
	MorphoBlue    map[int64]common.Address // chain id -> Morpho Blue singleton
	Distributor   map[int64]common.Address // chain id -> Universal Rewards Distributor, optional
	WrappedNative map[int64]common.Address // chain id -> WETH9-style wrapper, for Native requests
	Broadcasters  map[int64]ChainBroadcaster
	GraphQLURL    string // defaults to morphoGraphQLDefaultEndpoint when empty
	RewardsAPIURL string // defaults to defaultMorphoRewardsAPIURL when empty
}

func (a *MorphoAdapter) broadcaster(chainID int64) (ChainBroadcaster, error) {
	b, ok := a.Broadcasters[chainID]
	if !ok {
		return nil, canon.NewAdapterError("broadcast", canon.ErrConfig, "no broadcaster configured for chain")
	}
	return b, nil
}

func (a *MorphoAdapter) graphQLURL() string {
	if strings.TrimSpace(a.GraphQLURL) != "" {
		return a.GraphQLURL
	}
	return morphoGraphQLDefaultEndpoint
}

func (a *MorphoAdapter) Supports(cap adapter.Capability) bool {
	switch cap {
	case adapter.CapGetAllMarkets, adapter.CapGetFullUserState,
		adapter.CapLend, adapter.CapUnlend, adapter.CapBorrow, adapter.CapRepay,
		adapter.CapClaimRewards:
		return true
	case adapter.CapSetCollateral:
		// Morpho Blue has no enable/disable-as-collateral toggle: every
		// unit of supplyCollateral is usable collateral by construction,
		// there is no separate supply-only side to flip.
		return false
	default:
		return false
	}
}

type morphoGraphQLMarket struct {
	UniqueKey string `json:"uniqueKey"`
	LLTV      string `json:"lltv"`
	IRM       string `json:"irmAddress"`
	Morpho    struct {
		Address string `json:"address"`
	} `json:"morphoBlue"`
	Oracle struct {
		Address string `json:"address"`
	} `json:"oracle"`
	LoanAsset struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"loanAsset"`
	CollateralAsset *struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"collateralAsset"`
	State struct {
		SupplyAssets    string  `json:"supplyAssets"`
		BorrowAssets    string  `json:"borrowAssets"`
		LiquidityAssets string  `json:"liquidityAssets"`
		SupplyApy       float64 `json:"supplyApy"`
		BorrowApy       float64 `json:"borrowApy"`
		PriceUSD        float64 `json:"price"`
	} `json:"state"`
}

const morphoMarketsByChainQuery = `query Markets($chain:Int!){
  markets(first: 1000, where:{ chainId_in: [$chain], listed: true }){
    items{
      uniqueKey
      irmAddress
      lltv
      morphoBlue{ address }
      oracle{ address }
      loanAsset{ address symbol decimals }
      collateralAsset{ address symbol }
      state{ supplyAssets borrowAssets liquidityAssets supplyApy borrowApy price }
    }
  }
}`

type morphoMarketsByChainResponse struct {
	Data struct {
		Markets struct {
			Items []morphoGraphQLMarket `json:"items"`
		} `json:"markets"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GetAllMarkets lists every listed market on chainID through the GraphQL
// index — Morpho Blue keeps no enumerable on-chain market registry, markets
// are created permissionlessly via CreateMarket events, so a scan would
// need full log history rather than one lens call.
func (a *MorphoAdapter) GetAllMarkets(ctx context.Context, chainID string, includeRewards bool) ([]canon.LendingMarket, error) {
	id, err := parseChainID(chainID)
	if err != nil {
		return nil, err
	}
	if _, ok := a.MorphoBlue[id]; !ok {
		return nil, canon.Unsupportedf("get_all_markets", "morpho", "chain %s not configured", chainID)
	}

	body, err := json.Marshal(map[string]any{
		"query":     morphoMarketsByChainQuery,
		"variables": map[string]any{"chain": id},
	})
	if err != nil {
		return nil, canon.Wrap("get_all_markets", canon.ErrSchema, err)
	}
	client := httpx.New(15*time.Second, 2)
	var resp morphoMarketsByChainResponse
	if _, err := httpx.DoBodyJSON(ctx, client, http.MethodPost, a.graphQLURL(), body, nil, &resp); err != nil {
		return nil, canon.Wrap("get_all_markets", canon.ErrRPC, err)
	}
	if len(resp.Errors) > 0 {
		return nil, canon.NewAdapterError("get_all_markets", canon.ErrRPC, "morpho graphql error: "+resp.Errors[0].Message)
	}

	markets := make([]canon.LendingMarket, 0, len(resp.Data.Markets.Items))
	for _, item := range resp.Data.Markets.Items {
		m, ok := morphoMarketFromGraphQL(chainID, item)
		if !ok {
			continue
		}
		// Reward emission rates are per-epoch Merkle-distributor figures
		// published off-chain, not readable from a lens call or the
		// market listing; includeRewards has no effect here, and
		// ClaimRewards pulls the current claimable snapshot instead.
		markets = append(markets, m)
	}
	return markets, nil
}

func morphoMarketFromGraphQL(chainID string, item morphoGraphQLMarket) (canon.LendingMarket, bool) {
	if strings.TrimSpace(item.LoanAsset.Address) == "" || !common.IsHexAddress(item.LoanAsset.Address) {
		return canon.LendingMarket{}, false
	}
	lltv, ok := new(big.Int).SetString(strings.TrimSpace(item.LLTV), 10)
	if !ok {
		lltv = big.NewInt(0)
	}
	// lltv is WAD-scaled (1e18 == 100%); express as bps for the canonical
	// shape the same way an Aave bps config field would.
	lltvBps := new(big.Int).Div(lltv, big.NewInt(1e14)).Int64()

	supply, _ := new(big.Int).SetString(strings.TrimSpace(item.State.SupplyAssets), 10)
	borrow, _ := new(big.Int).SetString(strings.TrimSpace(item.State.BorrowAssets), 10)
	liquidity, _ := new(big.Int).SetString(strings.TrimSpace(item.State.LiquidityAssets), 10)

	supplyAPR := ratemath.NormalizeAPR(item.State.SupplyApy)
	borrowAPR := ratemath.NormalizeAPR(item.State.BorrowApy)

	pool := item.Morpho.Address
	if !common.IsHexAddress(pool) {
		pool = ""
	}

	flags := canon.LendingMarketFlags{
		Active:            true,
		CollateralEnabled: item.CollateralAsset != nil,
		BorrowingEnabled:  true,
	}

	return canon.LendingMarket{
		ChainID:                 chainID,
		Pool:                    pool,
		Underlying:              item.LoanAsset.Address,
		SymbolCanon:             strings.ToUpper(strings.TrimSpace(item.LoanAsset.Symbol)),
		Decimals:                item.LoanAsset.Decimals,
		LTVBps:                  int(lltvBps),
		LiquidationThresholdBps: int(lltvBps), // Morpho Blue has a single LLTV, no separate LT
		PriceUSD:                item.State.PriceUSD,
		SupplyAPR:               supplyAPR,
		SupplyAPY:               ratemath.APYFromAPR(supplyAPR),
		VariableBorrowAPR:       borrowAPR,
		VariableBorrowAPY:       ratemath.APYFromAPR(borrowAPR),
		AvailableLiquidity:      canon.NewBigInt(nonNilBig(liquidity)),
		TotalVariableDebt:       canon.NewBigInt(nonNilBig(borrow)),
		TVL:                     canon.NewBigInt(nonNilBig(supply)),
		Flags:                   flags,
	}, true
}

// sharesToAssets converts a Morpho Blue share balance to its underlying
// asset amount using the protocol's virtual-liquidity formula:
// assets = shares * (totalAssets + 1) / (totalShares + 1e6).
func sharesToAssets(shares, totalShares, totalAssets *big.Int) *big.Int {
	num := new(big.Int).Mul(shares, new(big.Int).Add(totalAssets, morphoVirtualAssets))
	den := new(big.Int).Add(totalShares, morphoVirtualShares)
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Div(num, den)
}

func decodeMorphoMarket(r multicall.Result) (totalSupplyAssets, totalSupplyShares, totalBorrowAssets, totalBorrowShares *big.Int, ok bool) {
	if !r.Ok() {
		return nil, nil, nil, nil, false
	}
	vals, err := calldata.Decode(morphoBlueReadABI, "market", r.Bytes)
	if err != nil || len(vals) < 4 {
		return nil, nil, nil, nil, false
	}
	tsa, _ := vals[0].(*big.Int)
	tss, _ := vals[1].(*big.Int)
	tba, _ := vals[2].(*big.Int)
	tbs, _ := vals[3].(*big.Int)
	if tsa == nil || tss == nil || tba == nil || tbs == nil {
		return nil, nil, nil, nil, false
	}
	return tsa, tss, tba, tbs, true
}

func decodeMorphoPosition(r multicall.Result) (supplyShares, borrowShares, collateral *big.Int, ok bool) {
	if !r.Ok() {
		return nil, nil, nil, false
	}
	vals, err := calldata.Decode(morphoBlueReadABI, "position", r.Bytes)
	if err != nil || len(vals) < 3 {
		return nil, nil, nil, false
	}
	ss, _ := vals[0].(*big.Int)
	bs, _ := vals[1].(*big.Int)
	coll, _ := vals[2].(*big.Int)
	if ss == nil || bs == nil || coll == nil {
		return nil, nil, nil, false
	}
	return ss, bs, coll, true
}
