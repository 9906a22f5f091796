// Package lendingpool implements adapter.LendingPoolAdapter for variable-
// rate money-market protocols. AaveAdapter targets Aave-v3-style pools
// reached through their on-chain PoolAddressesProvider/PoolDataProvider/
// Oracle lens contracts rather than an off-chain indexer.
package lendingpool

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
	"github.com/wayfinder-paths/adapter-runtime/internal/registry"
)

var (
	addressProviderABI = calldata.ParseABI(registry.AavePoolAddressProviderABI)
	dataProviderABI    = calldata.ParseABI(registry.AaveProtocolDataProviderABI)
	oracleABI          = calldata.ParseABI(registry.AaveOracleABI)
	incentivesABI      = calldata.ParseABI(registry.AaveIncentivesControllerABI)
	poolABI            = calldata.ParseABI(registry.AavePoolABI)
	rewardsABI         = calldata.ParseABI(registry.AaveRewardsABI)
	wrappedNativeABI   = calldata.ParseABI(registry.WETH9ABI)
)

const (
	// interestRateModeVariable is Aave v3's only supported borrow mode
	// since stable-rate borrowing was deprecated; variable_debt_token is
	// the only debt side this adapter surfaces.
	interestRateModeVariable = 2
	referralCode              = 0
)

// AaveAdapter implements adapter.LendingPoolAdapter against a fixed set of
// Aave-v3-style deployments, one PoolAddressesProvider per chain.
type AaveAdapter struct {
	Gateway          *chain.Gateway
	Multicall        map[int64]common.Address // chain id -> Multicall contract
	AddressProviders map[int64]common.Address // chain id -> PoolAddressesProvider
	IncentivesCtrl   map[int64]common.Address // chain id -> RewardsController, optional
	WrappedNative    map[int64]common.Address // chain id -> WETH9-style wrapper, for Native requests
	Broadcasters     map[int64]ChainBroadcaster
}

// ChainBroadcaster is the narrow send surface the adapter needs per chain;
// internal/execution.ChainBroadcaster implements it. Kept as an interface
// here so this package does not import internal/execution directly.
type ChainBroadcaster interface {
	SendAndWait(ctx context.Context, call calldata.Call) (common.Hash, error)
	SendValueAndWait(ctx context.Context, call calldata.Call, value *big.Int) (common.Hash, error)
}

func (a *AaveAdapter) broadcaster(chainID int64) (ChainBroadcaster, error) {
	b, ok := a.Broadcasters[chainID]
	if !ok {
		return nil, canon.NewAdapterError("broadcast", canon.ErrConfig, "no broadcaster configured for chain")
	}
	return b, nil
}

func (a *AaveAdapter) Supports(cap adapter.Capability) bool {
	switch cap {
	case adapter.CapGetAllMarkets, adapter.CapGetFullUserState,
		adapter.CapLend, adapter.CapUnlend, adapter.CapBorrow, adapter.CapRepay,
		adapter.CapSetCollateral, adapter.CapClaimRewards:
		return true
	default:
		return false
	}
}

func parseChainID(chainID string) (int64, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(chainID, "eip155:"), 10)
	if !ok {
		return 0, canon.NewAdapterError("parse_chain_id", canon.ErrInput, "invalid chain id: "+chainID)
	}
	return v.Int64(), nil
}

// resolveLens reads the pool data provider and price oracle addresses off
// the chain's PoolAddressesProvider — one lens call each — rather than
// hardcoding them, since Aave governance can and does rotate these
// addresses.
func (a *AaveAdapter) resolveLens(ctx context.Context, c *chain.Client, provider common.Address) (dataProvider, oracle common.Address, err error) {
	dpCall, err := calldata.EncodeCall(addressProviderABI, provider, "getPoolDataProvider")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	dpOut, err := c.EthCall(ctx, dpCall.To, dpCall.Data, chain.Latest)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	dpVals, err := calldata.Decode(addressProviderABI, "getPoolDataProvider", dpOut)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	dataProvider = dpVals[0].(common.Address)

	oracleCall, err := calldata.EncodeCall(addressProviderABI, provider, "getPriceOracle")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	oracleOut, err := c.EthCall(ctx, oracleCall.To, oracleCall.Data, chain.Latest)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	oracleVals, err := calldata.Decode(addressProviderABI, "getPriceOracle", oracleOut)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	oracle = oracleVals[0].(common.Address)
	return dataProvider, oracle, nil
}

func (a *AaveAdapter) resolvePool(ctx context.Context, c *chain.Client, provider common.Address) (common.Address, error) {
	call, err := calldata.EncodeCall(addressProviderABI, provider, "getPool")
	if err != nil {
		return common.Address{}, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return common.Address{}, err
	}
	vals, err := calldata.Decode(addressProviderABI, "getPool", out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

type reserveToken struct {
	Symbol  string
	Address common.Address
}

// GetAllMarkets enumerates every reserve on chainID through
// getAllReservesTokens, then multicalls getReserveConfigurationData,
// getReserveData, getReserveCaps, getPaused, getSiloedBorrowing, and
// getAssetPrice for every reserve through one chunked multicall Aggregate
// instead of one eth_call per market per field.
func (a *AaveAdapter) GetAllMarkets(ctx context.Context, chainID string, includeRewards bool) ([]canon.LendingMarket, error) {
	id, err := parseChainID(chainID)
	if err != nil {
		return nil, err
	}
	provider, ok := a.AddressProviders[id]
	if !ok {
		return nil, canon.Unsupportedf("get_all_markets", "aave", "chain %s not configured", chainID)
	}
	mcAddr, ok := a.Multicall[id]
	if !ok {
		return nil, canon.NewAdapterError("get_all_markets", canon.ErrConfig, "no multicall contract configured for chain "+chainID)
	}
	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return nil, err
	}

	dataProvider, oracle, err := a.resolveLens(ctx, c, provider)
	if err != nil {
		return nil, err
	}
	pool, err := a.resolvePool(ctx, c, provider)
	if err != nil {
		return nil, err
	}

	tokensCall, err := calldata.EncodeCall(dataProviderABI, dataProvider, "getAllReservesTokens")
	if err != nil {
		return nil, err
	}
	tokensOut, err := c.EthCall(ctx, tokensCall.To, tokensCall.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	tokensVals, err := calldata.Decode(dataProviderABI, "getAllReservesTokens", tokensOut)
	if err != nil {
		return nil, err
	}
	reserves, err := decodeReserveTokens(tokensVals[0])
	if err != nil {
		return nil, err
	}

	// Six calls per reserve, batched across the whole reserve list.
	var calls []multicall.Call
	for _, r := range reserves {
		cfgCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getReserveConfigurationData", r.Address)
		rdCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getReserveData", r.Address)
		capCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getReserveCaps", r.Address)
		pausedCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getPaused", r.Address)
		siloedCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getSiloedBorrowing", r.Address)
		priceCall, _ := calldata.EncodeCall(oracleABI, oracle, "getAssetPrice", r.Address)
		calls = append(calls,
			multicall.Call{Target: cfgCall.To, Data: cfgCall.Data},
			multicall.Call{Target: rdCall.To, Data: rdCall.Data},
			multicall.Call{Target: capCall.To, Data: capCall.Data},
			multicall.Call{Target: pausedCall.To, Data: pausedCall.Data},
			multicall.Call{Target: siloedCall.To, Data: siloedCall.Data},
			multicall.Call{Target: priceCall.To, Data: priceCall.Data},
		)
	}
	results, err := multicall.Aggregate(ctx, c, mcAddr, calls, multicall.DefaultChunkSize, chain.Latest)
	if err != nil {
		return nil, err
	}

	baseUnitOut, err := calldata.EncodeCall(oracleABI, oracle, "BASE_CURRENCY_UNIT")
	if err != nil {
		return nil, err
	}
	baseUnitRaw, err := c.EthCall(ctx, baseUnitOut.To, baseUnitOut.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	baseUnitVals, err := calldata.Decode(oracleABI, "BASE_CURRENCY_UNIT", baseUnitRaw)
	if err != nil {
		return nil, err
	}
	baseUnit := new(big.Float).SetInt(baseUnitVals[0].(*big.Int))

	markets := make([]canon.LendingMarket, 0, len(reserves))
	for i, r := range reserves {
		slot := results[i*6 : i*6+6]
		m, err := buildMarket(chainID, pool, r, slot, baseUnit)
		if err != nil {
			continue // one unreadable reserve does not fail the whole listing
		}
		if includeRewards && a.IncentivesCtrl[id] != (common.Address{}) {
			m.Incentives = a.fetchIncentives(ctx, c, id, r.Address, oracle, baseUnit)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// decodeReserveTokens walks the getAllReservesTokens return value by
// reflection: go-ethereum unpacks a tuple[] into a slice of a struct type
// assembled at runtime (field order preserved, named Symbol/TokenAddress),
// so a static type assertion against that shape is unreliable — reflect
// lets this decode the (string, address) pair by field index instead.
func decodeReserveTokens(raw any) ([]reserveToken, error) {
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice {
		return nil, canon.NewAdapterError("get_all_markets", canon.ErrSchema, "getAllReservesTokens: unexpected return shape")
	}
	out := make([]reserveToken, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() != reflect.Struct || elem.NumField() < 2 {
			continue
		}
		symbol, _ := elem.Field(0).Interface().(string)
		addr, ok := elem.Field(1).Interface().(common.Address)
		if !ok {
			continue
		}
		out = append(out, reserveToken{Symbol: symbol, Address: addr})
	}
	return out, nil
}

func buildMarket(chainID string, pool common.Address, r reserveToken, slot []multicall.Result, baseUnit *big.Float) (canon.LendingMarket, error) {
	cfg, ok := decodeConfig(slot[0])
	if !ok {
		return canon.LendingMarket{}, fmt.Errorf("undecodable config for %s", r.Address)
	}
	rd, ok := decodeReserveData(slot[1])
	if !ok {
		return canon.LendingMarket{}, fmt.Errorf("undecodable reserve data for %s", r.Address)
	}
	caps, ok := decodeCaps(slot[2])
	if !ok {
		caps = reserveCaps{}
	}
	paused := slot[3].Ok() && len(slot[3].Bytes) >= 32 && new(big.Int).SetBytes(slot[3].Bytes[:32]).Sign() != 0
	siloed := slot[4].Ok() && len(slot[4].Bytes) >= 32 && new(big.Int).SetBytes(slot[4].Bytes[:32]).Sign() != 0

	var priceUSD float64
	if price, ok := multicall.BigIntFromSlot(slot[5]); ok && baseUnit.Sign() != 0 {
		pf := new(big.Float).SetInt(price)
		pf.Quo(pf, baseUnit)
		priceUSD, _ = pf.Float64()
	}

	supplyAPR := ratemath.APRFromRay(rd.LiquidityRate)
	borrowAPR := ratemath.APRFromRay(rd.VariableBorrowRate)

	tvl := new(big.Int).Add(rd.TotalAToken, big.NewInt(0))
	// getReserveData already reports totalVariableDebt in actual (not
	// scaled) underlying units, so the scaled->underlying index step in
	// SupplyCapHeadroom is a no-op here (index=RAY).
	headroom := ratemath.SupplyCapHeadroom(caps.SupplyCap, cfg.Decimals, rd.TotalAToken, rd.TotalVariableDebt, ratemath.RAY)

	return canon.LendingMarket{
		ChainID:     chainID,
		Pool:        pool.Hex(),
		Underlying:  r.Address.Hex(),
		SymbolCanon: r.Symbol,
		Decimals:    cfg.Decimals,

		LTVBps:                  int(cfg.LTV.Int64()),
		LiquidationThresholdBps: int(cfg.LiquidationThreshold.Int64()),
		PriceUSD:                priceUSD,

		SupplyAPR:         supplyAPR,
		SupplyAPY:         ratemath.APYFromAPR(supplyAPR),
		VariableBorrowAPR: borrowAPR,
		VariableBorrowAPY: ratemath.APYFromAPR(borrowAPR),

		AvailableLiquidity: canon.NewBigInt(rd.TotalAToken),
		TotalVariableDebt:  canon.NewBigInt(rd.TotalVariableDebt),
		TVL:                canon.NewBigInt(tvl),

		SupplyCap:         canon.NewBigInt(caps.SupplyCap),
		SupplyCapHeadroom: headroomPtr(headroom),
		BorrowCap:         canon.NewBigInt(caps.BorrowCap),

		Flags: canon.LendingMarketFlags{
			Active:            cfg.IsActive,
			Frozen:            cfg.IsFrozen,
			Paused:            paused,
			Siloed:            siloed,
			Stable:            false,
			CollateralEnabled: cfg.UsageAsCollateralEnabled,
			BorrowingEnabled:  cfg.BorrowingEnabled,
		},
	}, nil
}

func headroomPtr(h *big.Int) *canon.BigInt {
	if h == nil {
		return nil
	}
	v := canon.NewBigInt(h)
	return &v
}

func (a *AaveAdapter) fetchIncentives(ctx context.Context, c *chain.Client, chainID int64, asset, oracle common.Address, baseUnit *big.Float) []canon.Incentive {
	ctrl := a.IncentivesCtrl[chainID]
	call, err := calldata.EncodeCall(incentivesABI, ctrl, "getRewardsByAsset", asset)
	if err != nil {
		return nil
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil
	}
	vals, err := calldata.Decode(incentivesABI, "getRewardsByAsset", out)
	if err != nil || len(vals) == 0 {
		return nil
	}
	rewards, ok := vals[0].([]common.Address)
	if !ok {
		return nil
	}
	incentives := make([]canon.Incentive, 0, len(rewards))
	for _, reward := range rewards {
		dataCall, err := calldata.EncodeCall(incentivesABI, ctrl, "getRewardsData", asset, reward)
		if err != nil {
			continue
		}
		dataOut, err := c.EthCall(ctx, dataCall.To, dataCall.Data, chain.Latest)
		if err != nil {
			continue
		}
		dataVals, err := calldata.Decode(incentivesABI, "getRewardsData", dataOut)
		if err != nil || len(dataVals) < 4 {
			continue
		}
		emission, _ := dataVals[1].(*big.Int)
		distEnd, _ := dataVals[3].(*big.Int)
		var distEndPtr *int64
		if distEnd != nil {
			v := distEnd.Int64()
			distEndPtr = &v
		}
		incentives = append(incentives, canon.Incentive{
			Side:              canon.IncentiveSupply,
			Token:             reward.Hex(),
			EmissionPerSecond: canon.NewBigInt(emission),
			DistributionEnd:   distEndPtr,
		})
	}
	return incentives
}
