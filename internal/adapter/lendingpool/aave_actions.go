package lendingpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/erc20"
	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
)

// GetFullUserState fans out across chainIDs concurrently (bounded by
// errgroup, one goroutine per chain — the account list per chain is small
// enough that no further chunking is needed) and rolls up one Position per
// reserve with a non-zero aToken balance or variable debt (every reserve
// when includeZeroPositions is set). A failure on one chain is recorded
// via UserState.AddChainError and does not fail the others.
func (a *AaveAdapter) GetFullUserState(ctx context.Context, account string, chainIDs []string, includeZeroPositions bool) (canon.UserState, error) {
	state := canon.UserState{Protocol: "aave", Account: account, Chains: chainIDs}
	if !common.IsHexAddress(account) {
		return state, canon.NewAdapterError("get_full_user_state", canon.ErrInput, "invalid account address")
	}
	owner := common.HexToAddress(account)

	type chainResult struct {
		chainID   string
		positions []canon.Position
		err       error
	}
	results := make([]chainResult, len(chainIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, cid := range chainIDs {
		i, cid := i, cid
		g.Go(func() error {
			positions, err := a.userPositionsOnChain(gctx, owner, cid, includeZeroPositions)
			results[i] = chainResult{chainID: cid, positions: positions, err: err}
			return nil // per-chain errors are recorded, never aborted
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err != nil {
			state.AddChainError(r.chainID, r.err.Error())
			continue
		}
		state.Positions = append(state.Positions, r.positions...)
	}
	return state, nil
}

func (a *AaveAdapter) userPositionsOnChain(ctx context.Context, owner common.Address, chainIDStr string, includeZero bool) ([]canon.Position, error) {
	id, err := parseChainID(chainIDStr)
	if err != nil {
		return nil, err
	}
	provider, ok := a.AddressProviders[id]
	if !ok {
		return nil, canon.Unsupportedf("get_full_user_state", "aave", "chain %s not configured", chainIDStr)
	}
	mcAddr, ok := a.Multicall[id]
	if !ok {
		return nil, canon.NewAdapterError("get_full_user_state", canon.ErrConfig, "no multicall contract configured")
	}
	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return nil, err
	}
	dataProvider, oracle, err := a.resolveLens(ctx, c, provider)
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

	calls := make([]multicall.Call, 0, len(reserves)*2)
	for _, r := range reserves {
		userCall, _ := calldata.EncodeCall(dataProviderABI, dataProvider, "getUserReserveData", r.Address, owner)
		priceCall, _ := calldata.EncodeCall(oracleABI, oracle, "getAssetPrice", r.Address)
		calls = append(calls,
			multicall.Call{Target: userCall.To, Data: userCall.Data},
			multicall.Call{Target: priceCall.To, Data: priceCall.Data},
		)
	}
	results, err := multicall.Aggregate(ctx, c, mcAddr, calls, multicall.DefaultChunkSize, chain.Latest)
	if err != nil {
		return nil, err
	}

	baseUnitCall, err := calldata.EncodeCall(oracleABI, oracle, "BASE_CURRENCY_UNIT")
	if err != nil {
		return nil, err
	}
	baseUnitOut, err := c.EthCall(ctx, baseUnitCall.To, baseUnitCall.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	baseUnitVals, err := calldata.Decode(oracleABI, "BASE_CURRENCY_UNIT", baseUnitOut)
	if err != nil {
		return nil, err
	}
	baseUnit := new(big.Float).SetInt(baseUnitVals[0].(*big.Int))

	positions := make([]canon.Position, 0, len(reserves))
	for i, r := range reserves {
		userSlot, priceSlot := results[i*2], results[i*2+1]
		if !userSlot.Ok() {
			continue
		}
		vals, err := calldata.Decode(dataProviderABI, "getUserReserveData", userSlot.Bytes)
		if err != nil || len(vals) < 9 {
			continue
		}
		aTokenBal, _ := vals[0].(*big.Int)
		varDebt, _ := vals[4].(*big.Int) // scaledVariableDebt
		usageCollateral, _ := vals[8].(bool)

		if !includeZero && nonNilZero(aTokenBal) && nonNilZero(varDebt) {
			continue
		}

		var priceUSD float64
		if price, ok := multicall.BigIntFromSlot(priceSlot); ok && baseUnit.Sign() != 0 {
			pf := new(big.Float).SetInt(price)
			pf.Quo(pf, baseUnit)
			priceUSD, _ = pf.Float64()
		}

		positions = append(positions, canon.Position{
			ChainID:           chainIDStr,
			Protocol:          "aave",
			Underlying:        r.Address.Hex(),
			ShareOrBalanceRaw: canon.NewBigInt(aTokenBal),
			DebtRaw:           canon.NewBigInt(varDebt),
			UsageAsCollateral: usageCollateral,
			PriceUSD:          priceUSD,
		})
	}
	return positions, nil
}

func nonNilZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func (a *AaveAdapter) pool(ctx context.Context, id int64) (common.Address, error) {
	provider, ok := a.AddressProviders[id]
	if !ok {
		return common.Address{}, canon.NewAdapterError("resolve_pool", canon.ErrConfig, "chain not configured")
	}
	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	return a.resolvePool(ctx, c, provider)
}

// Lend supplies req.Amount of req.Underlying into the pool on behalf of
// req.Account. Native requests wrap through WrappedNative first.
func (a *AaveAdapter) Lend(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	pool, err := a.pool(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)
	amount := nonNilBig(req.Amount.Int)

	var hashes []string
	underlying := common.HexToAddress(req.Underlying)
	if req.Native {
		wrapped, ok := a.WrappedNative[id]
		if !ok {
			return adapter.LendResult{}, canon.Unsupportedf("lend", "aave", "no wrapped-native configured for chain %s", req.ChainID)
		}
		underlying = wrapped
		wrapCall, err := calldata.EncodeCall(wrappedNativeABI, wrapped, "deposit")
		if err != nil {
			return adapter.LendResult{}, err
		}
		hash, err := b.SendValueAndWait(ctx, wrapCall, amount)
		if err != nil {
			return adapter.LendResult{}, canon.Wrap("lend", canon.ErrRevert, err)
		}
		hashes = append(hashes, hash.Hex())
	}

	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	if _, err := erc20.EnsureAllowance(ctx, c, b, id, underlying, account, pool, amount, amount); err != nil {
		return adapter.LendResult{TxHashes: hashes}, err
	}

	supplyCall, err := calldata.EncodeCall(poolABI, pool, "supply", underlying, amount, account, uint16(referralCode))
	if err != nil {
		return adapter.LendResult{TxHashes: hashes}, err
	}
	hash, err := b.SendAndWait(ctx, supplyCall)
	if err != nil {
		return adapter.LendResult{TxHashes: hashes}, canon.Wrap("lend", canon.ErrRevert, err)
	}
	hashes = append(hashes, hash.Hex())
	return adapter.LendResult{TxHashes: hashes}, nil
}

// Unlend withdraws req.Amount (or the full aToken balance when req.Full)
// of req.Underlying back to req.Account.
func (a *AaveAdapter) Unlend(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	pool, err := a.pool(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)
	underlying := common.HexToAddress(req.Underlying)
	amount := nonNilBig(req.Amount.Int)
	if req.Full {
		amount = erc20.MaxUint256
	}

	withdrawCall, err := calldata.EncodeCall(poolABI, pool, "withdraw", underlying, amount, account)
	if err != nil {
		return adapter.LendResult{}, err
	}
	hash, err := b.SendAndWait(ctx, withdrawCall)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("unlend", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

// Borrow draws req.Amount of req.Underlying against the account's
// collateral, always at the variable rate — Aave v3 has deprecated stable
// borrowing.
func (a *AaveAdapter) Borrow(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	pool, err := a.pool(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)
	underlying := common.HexToAddress(req.Underlying)
	amount := nonNilBig(req.Amount.Int)

	borrowCall, err := calldata.EncodeCall(poolABI, pool, "borrow", underlying, amount, big.NewInt(interestRateModeVariable), uint16(referralCode), account)
	if err != nil {
		return adapter.LendResult{}, err
	}
	hash, err := b.SendAndWait(ctx, borrowCall)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("borrow", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

// Repay returns req.Amount (or MaxUint256 when req.Full, which the pool
// interprets as "repay the full outstanding debt") of req.Underlying.
func (a *AaveAdapter) Repay(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	pool, err := a.pool(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)
	underlying := common.HexToAddress(req.Underlying)
	amount := nonNilBig(req.Amount.Int)
	if req.Full {
		amount = erc20.MaxUint256
	}

	if _, err := erc20.EnsureAllowance(ctx, c, b, id, underlying, account, pool, amount, amount); err != nil {
		return adapter.LendResult{}, err
	}

	repayCall, err := calldata.EncodeCall(poolABI, pool, "repay", underlying, amount, big.NewInt(interestRateModeVariable), account)
	if err != nil {
		return adapter.LendResult{}, err
	}
	hash, err := b.SendAndWait(ctx, repayCall)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("repay", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

// SetCollateral is not directly exposed by Aave v3's Pool contract under
// this name; it maps onto setUserUseReserveAsCollateral, which this
// adapter packs through the same poolABI-adjacent call path.
func (a *AaveAdapter) SetCollateral(ctx context.Context, req adapter.SetCollateralRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	pool, err := a.pool(ctx, id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	underlying := common.HexToAddress(req.Underlying)

	call, err := calldata.EncodeCall(poolABI, pool, "setUserUseReserveAsCollateral", underlying, req.Enabled)
	if err != nil {
		return adapter.LendResult{}, err
	}
	hash, err := b.SendAndWait(ctx, call)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("set_collateral", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

// ClaimRewards pulls every available reward for req.Assets (or the
// account's full reserve list when empty) in a single claimRewards call
// against the RewardsController, paid to the account itself.
func (a *AaveAdapter) ClaimRewards(ctx context.Context, req adapter.ClaimRewardsRequest) (adapter.ClaimRewardsResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}
	ctrl, ok := a.IncentivesCtrl[id]
	if !ok {
		return adapter.ClaimRewardsResult{}, canon.Unsupportedf("claim_rewards", "aave", "no incentives controller configured for chain %s", req.ChainID)
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}
	account := common.HexToAddress(req.Account)

	assets := make([]common.Address, 0, len(req.Assets))
	for _, assetHex := range req.Assets {
		assets = append(assets, common.HexToAddress(assetHex))
	}
	if len(assets) == 0 {
		c, err := a.Gateway.ScopedClient(ctx, id)
		if err != nil {
			return adapter.ClaimRewardsResult{}, err
		}
		provider := a.AddressProviders[id]
		dataProvider, _, err := a.resolveLens(ctx, c, provider)
		if err == nil {
			if tokens, derr := a.allReserveAddresses(ctx, c, dataProvider); derr == nil {
				assets = tokens
			}
		}
	}

	call, err := calldata.EncodeCall(rewardsABI, ctrl, "claimRewards", assets, erc20.MaxUint256, account, common.Address{})
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}
	hash, err := b.SendAndWait(ctx, call)
	if err != nil {
		return adapter.ClaimRewardsResult{}, canon.Wrap("claim_rewards", canon.ErrRevert, err)
	}
	return adapter.ClaimRewardsResult{TxHash: hash.Hex()}, nil
}

func (a *AaveAdapter) allReserveAddresses(ctx context.Context, c *chain.Client, dataProvider common.Address) ([]common.Address, error) {
	call, err := calldata.EncodeCall(dataProviderABI, dataProvider, "getAllReservesTokens")
	if err != nil {
		return nil, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode(dataProviderABI, "getAllReservesTokens", out)
	if err != nil {
		return nil, err
	}
	reserves, err := decodeReserveTokens(vals[0])
	if err != nil {
		return nil, err
	}
	out2 := make([]common.Address, len(reserves))
	for i, r := range reserves {
		out2[i] = r.Address
	}
	return out2, nil
}

func nonNilBig(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}
