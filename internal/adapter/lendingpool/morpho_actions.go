package lendingpool

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/erc20"
	"github.com/wayfinder-paths/adapter-runtime/internal/httpx"
	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
)

const morphoUserMarketsQuery = `query UserMarkets($chain:Int!,$user:String!){
  marketPositions(first: 1000, where:{ chainId_in: [$chain], userAddress_in: [$user] }){
    items{
      market{ uniqueKey loanAsset{ address symbol decimals } state{ price } }
    }
  }
}`

type morphoUserMarketsResponse struct {
	Data struct {
		MarketPositions struct {
			Items []struct {
				Market struct {
					UniqueKey string `json:"uniqueKey"`
					LoanAsset struct {
						Address  string `json:"address"`
						Symbol   string `json:"symbol"`
						Decimals int    `json:"decimals"`
					} `json:"loanAsset"`
					State struct {
						PriceUSD float64 `json:"price"`
					} `json:"state"`
				} `json:"market"`
			} `json:"items"`
		} `json:"marketPositions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GetFullUserState fans out across chainIDs concurrently like the Aave
// adapter. Per chain, market membership is discovered through the GraphQL
// index (Morpho Blue has no on-chain "markets this account touched" view —
// membership is implicit in CreateMarket/Supply event history), then every
// discovered market's shares are re-read on-chain via multicall so the
// reported balances are never stale relative to the indexer.
func (a *MorphoAdapter) GetFullUserState(ctx context.Context, account string, chainIDs []string, includeZeroPositions bool) (canon.UserState, error) {
	state := canon.UserState{Protocol: "morpho", Account: account, Chains: chainIDs}
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
			return nil
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

func (a *MorphoAdapter) userPositionsOnChain(ctx context.Context, owner common.Address, chainIDStr string, includeZero bool) ([]canon.Position, error) {
	id, err := parseChainID(chainIDStr)
	if err != nil {
		return nil, err
	}
	morphoAddr, ok := a.MorphoBlue[id]
	if !ok {
		return nil, canon.Unsupportedf("get_full_user_state", "morpho", "chain %s not configured", chainIDStr)
	}
	mcAddr, ok := a.Multicall[id]
	if !ok {
		return nil, canon.NewAdapterError("get_full_user_state", canon.ErrConfig, "no multicall contract configured")
	}

	markets, err := a.fetchUserMarkets(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}

	c, err := a.Gateway.ScopedClient(ctx, id)
	if err != nil {
		return nil, err
	}

	calls := make([]multicall.Call, 0, len(markets)*2)
	for _, m := range markets {
		marketCall, _ := calldata.EncodeCall(morphoBlueReadABI, morphoAddr, "market", m.id)
		posCall, _ := calldata.EncodeCall(morphoBlueReadABI, morphoAddr, "position", m.id, owner)
		calls = append(calls,
			multicall.Call{Target: marketCall.To, Data: marketCall.Data},
			multicall.Call{Target: posCall.To, Data: posCall.Data},
		)
	}
	results, err := multicall.Aggregate(ctx, c, mcAddr, calls, multicall.DefaultChunkSize, chain.Latest)
	if err != nil {
		return nil, err
	}

	positions := make([]canon.Position, 0, len(markets))
	for i, m := range markets {
		marketSlot, posSlot := results[i*2], results[i*2+1]
		totalSupplyAssets, totalSupplyShares, totalBorrowAssets, totalBorrowShares, ok := decodeMorphoMarket(marketSlot)
		if !ok {
			continue
		}
		supplyShares, borrowShares, collateral, ok := decodeMorphoPosition(posSlot)
		if !ok {
			continue
		}

		supplyAssets := sharesToAssets(supplyShares, totalSupplyShares, totalSupplyAssets)
		borrowAssets := sharesToAssets(borrowShares, totalBorrowShares, totalBorrowAssets)

		if !includeZero && nonNilZero(supplyAssets) && nonNilZero(borrowAssets) && nonNilZero(collateral) {
			continue
		}

		positions = append(positions, canon.Position{
			ChainID:           chainIDStr,
			Protocol:          "morpho",
			Underlying:        m.loanToken,
			Decimals:          m.decimals,
			ShareOrBalanceRaw: canon.NewBigInt(supplyAssets),
			DebtRaw:           canon.NewBigInt(borrowAssets),
			// Morpho Blue collateral is a separate ERC20 balance tracked
			// per-market, not netted with the loan-asset supply side; this
			// adapter reports it as always-collateral since the protocol
			// has no opt-out toggle.
			UsageAsCollateral: collateral.Sign() > 0,
			PriceUSD:          m.priceUSD,
		})
	}
	return positions, nil
}

type morphoUserMarket struct {
	id         [32]byte
	loanToken  string
	decimals   int
	priceUSD   float64
}

func (a *MorphoAdapter) fetchUserMarkets(ctx context.Context, chainID int64, owner common.Address) ([]morphoUserMarket, error) {
	body, err := json.Marshal(map[string]any{
		"query": morphoUserMarketsQuery,
		"variables": map[string]any{
			"chain": chainID,
			"user":  strings.ToLower(owner.Hex()),
		},
	})
	if err != nil {
		return nil, canon.Wrap("get_full_user_state", canon.ErrSchema, err)
	}
	client := httpx.New(15*time.Second, 2)
	var resp morphoUserMarketsResponse
	if _, err := httpx.DoBodyJSON(ctx, client, http.MethodPost, a.graphQLURL(), body, nil, &resp); err != nil {
		return nil, canon.Wrap("get_full_user_state", canon.ErrRPC, err)
	}
	if len(resp.Errors) > 0 {
		return nil, canon.NewAdapterError("get_full_user_state", canon.ErrRPC, "morpho graphql error: "+resp.Errors[0].Message)
	}

	out := make([]morphoUserMarket, 0, len(resp.Data.MarketPositions.Items))
	for _, item := range resp.Data.MarketPositions.Items {
		key := strings.TrimSpace(item.Market.UniqueKey)
		if key == "" {
			continue
		}
		out = append(out, morphoUserMarket{
			id:        common.HexToHash(key),
			loanToken: item.Market.LoanAsset.Address,
			decimals:  item.Market.LoanAsset.Decimals,
			priceUSD:  item.Market.State.PriceUSD,
		})
	}
	return out, nil
}

// morphoMarketParamsForAction resolves the MarketParams tuple (loanToken,
// collateralToken, oracle, irm, lltv) a state-changing call must supply
// alongside the bytes32 market id, by reading the Morpho singleton's
// idToMarketParams mapping directly — avoids a second GraphQL round trip
// and stays correct even for markets the indexer has not caught up on yet.
func (a *MorphoAdapter) morphoMarketParamsForAction(ctx context.Context, chainID int64, marketID [32]byte) (common.Address, []byte, error) {
	morphoAddr, ok := a.MorphoBlue[chainID]
	if !ok {
		return common.Address{}, nil, canon.NewAdapterError("lend", canon.ErrConfig, "no morpho blue contract configured for chain")
	}
	c, err := a.Gateway.ScopedClient(ctx, chainID)
	if err != nil {
		return common.Address{}, nil, err
	}
	call, err := calldata.EncodeCall(morphoBlueReadABI, morphoAddr, "idToMarketParams", marketID)
	if err != nil {
		return common.Address{}, nil, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return common.Address{}, nil, err
	}
	return morphoAddr, out, nil
}

func parseMorphoMarketID(marketID string) ([32]byte, error) {
	clean := strings.TrimSpace(marketID)
	if !strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") {
		return [32]byte{}, canon.NewAdapterError("lend", canon.ErrInput, "morpho market id must be a 0x-prefixed bytes32 value")
	}
	return common.HexToHash(clean), nil
}

func (a *MorphoAdapter) marketParamsTuple(ctx context.Context, chainID int64, marketID [32]byte) (morphoParamsTuple, error) {
	morphoAddr, raw, err := a.morphoMarketParamsForAction(ctx, chainID, marketID)
	if err != nil {
		return morphoParamsTuple{}, err
	}
	vals, err := calldata.Decode(morphoBlueReadABI, "idToMarketParams", raw)
	if err != nil || len(vals) < 5 {
		return morphoParamsTuple{}, canon.NewAdapterError("lend", canon.ErrSchema, "undecodable morpho market params")
	}
	loanToken, _ := vals[0].(common.Address)
	collateralToken, _ := vals[1].(common.Address)
	oracle, _ := vals[2].(common.Address)
	irm, _ := vals[3].(common.Address)
	lltv, _ := vals[4].(*big.Int)
	return morphoParamsTuple{
		morpho:          morphoAddr,
		loanToken:       loanToken,
		collateralToken: collateralToken,
		oracle:          oracle,
		irm:             irm,
		lltv:            lltv,
	}, nil
}

type morphoParamsTuple struct {
	morpho          common.Address
	loanToken       common.Address
	collateralToken common.Address
	oracle          common.Address
	irm             common.Address
	lltv            *big.Int
}

// marketIDFromRequest reads req.Underlying as the 0x-prefixed bytes32
// market id: adapter.LendRequest has no dedicated market-id field, and
// Morpho Blue markets are keyed by id rather than by a single loan asset
// address (one loan asset spans many markets at different LLTVs/oracles),
// so this adapter overloads Underlying with the market id for all four
// lend-family verbs.
func marketIDFromRequest(underlying string) ([32]byte, error) {
	return parseMorphoMarketID(underlying)
}

// Lend supplies req.Amount into the market identified by req.Underlying
// (a market id, see marketIDFromRequest). Native requests wrap through
// WrappedNative first, matching the Aave adapter's convention.
func (a *MorphoAdapter) Lend(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	marketID, err := marketIDFromRequest(req.Underlying)
	if err != nil {
		return adapter.LendResult{}, err
	}
	params, err := a.marketParamsTuple(ctx, id, marketID)
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
	loanToken := params.loanToken
	if req.Native {
		wrapped, ok := a.WrappedNative[id]
		if !ok {
			return adapter.LendResult{}, canon.Unsupportedf("lend", "morpho", "no wrapped-native configured for chain %s", req.ChainID)
		}
		if !strings.EqualFold(wrapped.Hex(), loanToken.Hex()) {
			return adapter.LendResult{}, canon.NewAdapterError("lend", canon.ErrInput, "native lend requested but market loan token is not the wrapped native asset")
		}
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
	if _, err := erc20.EnsureAllowance(ctx, c, b, id, loanToken, account, params.morpho, amount, amount); err != nil {
		return adapter.LendResult{TxHashes: hashes}, err
	}

	data, err := morphoBlueReadABI.Pack("supply", morphoMarketParamsArgs(params), amount, big.NewInt(0), account, []byte{})
	if err != nil {
		return adapter.LendResult{TxHashes: hashes}, canon.Wrap("lend", canon.ErrSchema, err)
	}
	hash, err := b.SendAndWait(ctx, calldata.Call{To: params.morpho, Data: data})
	if err != nil {
		return adapter.LendResult{TxHashes: hashes}, canon.Wrap("lend", canon.ErrRevert, err)
	}
	hashes = append(hashes, hash.Hex())
	return adapter.LendResult{TxHashes: hashes}, nil
}

// Unlend withdraws req.Amount (or the full supply share balance when
// req.Full) from the market identified by req.Underlying.
func (a *MorphoAdapter) Unlend(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	marketID, err := marketIDFromRequest(req.Underlying)
	if err != nil {
		return adapter.LendResult{}, err
	}
	params, err := a.marketParamsTuple(ctx, id, marketID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)

	var data []byte
	if req.Full {
		// Morpho Blue has no MaxUint256-means-"everything" convention on
		// withdraw(): it takes assets XOR shares, so a full withdrawal
		// passes the account's entire supplyShares balance as shares
		// instead, with assets left at zero.
		shares, err := a.currentSupplyShares(ctx, id, marketID, account)
		if err != nil {
			return adapter.LendResult{}, err
		}
		data, err = morphoBlueReadABI.Pack("withdraw", morphoMarketParamsArgs(params), big.NewInt(0), shares, account, account)
		if err != nil {
			return adapter.LendResult{}, canon.Wrap("unlend", canon.ErrSchema, err)
		}
	} else {
		amount := nonNilBig(req.Amount.Int)
		data, err = morphoBlueReadABI.Pack("withdraw", morphoMarketParamsArgs(params), amount, big.NewInt(0), account, account)
		if err != nil {
			return adapter.LendResult{}, canon.Wrap("unlend", canon.ErrSchema, err)
		}
	}

	hash, err := b.SendAndWait(ctx, calldata.Call{To: params.morpho, Data: data})
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("unlend", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

func (a *MorphoAdapter) currentSupplyShares(ctx context.Context, chainID int64, marketID [32]byte, owner common.Address) (*big.Int, error) {
	morphoAddr, ok := a.MorphoBlue[chainID]
	if !ok {
		return nil, canon.NewAdapterError("unlend", canon.ErrConfig, "no morpho blue contract configured")
	}
	c, err := a.Gateway.ScopedClient(ctx, chainID)
	if err != nil {
		return nil, err
	}
	call, err := calldata.EncodeCall(morphoBlueReadABI, morphoAddr, "position", marketID, owner)
	if err != nil {
		return nil, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode(morphoBlueReadABI, "position", out)
	if err != nil || len(vals) == 0 {
		return nil, canon.NewAdapterError("unlend", canon.ErrSchema, "undecodable morpho position")
	}
	shares, _ := vals[0].(*big.Int)
	return nonNilBig(shares), nil
}

// Borrow draws req.Amount of the market's loan asset against the account's
// posted collateral in the market identified by req.Underlying.
func (a *MorphoAdapter) Borrow(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	marketID, err := marketIDFromRequest(req.Underlying)
	if err != nil {
		return adapter.LendResult{}, err
	}
	params, err := a.marketParamsTuple(ctx, id, marketID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.LendResult{}, err
	}
	account := common.HexToAddress(req.Account)
	amount := nonNilBig(req.Amount.Int)

	data, err := morphoBlueReadABI.Pack("borrow", morphoMarketParamsArgs(params), amount, big.NewInt(0), account, account)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("borrow", canon.ErrSchema, err)
	}
	hash, err := b.SendAndWait(ctx, calldata.Call{To: params.morpho, Data: data})
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("borrow", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

// Repay returns req.Amount (or the full borrowShares balance when req.Full)
// of the market's loan asset.
func (a *MorphoAdapter) Repay(ctx context.Context, req adapter.LendRequest) (adapter.LendResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	marketID, err := marketIDFromRequest(req.Underlying)
	if err != nil {
		return adapter.LendResult{}, err
	}
	params, err := a.marketParamsTuple(ctx, id, marketID)
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

	var data []byte
	if req.Full {
		morphoAddr := params.morpho
		call, err := calldata.EncodeCall(morphoBlueReadABI, morphoAddr, "position", marketID, account)
		if err != nil {
			return adapter.LendResult{}, err
		}
		out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
		if err != nil {
			return adapter.LendResult{}, err
		}
		vals, err := calldata.Decode(morphoBlueReadABI, "position", out)
		if err != nil || len(vals) < 2 {
			return adapter.LendResult{}, canon.NewAdapterError("repay", canon.ErrSchema, "undecodable morpho position")
		}
		borrowShares, _ := vals[1].(*big.Int)
		// Overpay by amount=0 with the full shares balance: Morpho Blue
		// accrues interest to the block before computing the assets owed
		// for a shares-denominated repay, so this always clears the debt
		// without requiring an off-chain interest estimate.
		data, err = morphoBlueReadABI.Pack("repay", morphoMarketParamsArgs(params), big.NewInt(0), nonNilBig(borrowShares), account, []byte{})
		if err != nil {
			return adapter.LendResult{}, canon.Wrap("repay", canon.ErrSchema, err)
		}
		if err := a.approveForRepay(ctx, c, b, id, params, account, erc20.MaxUint256); err != nil {
			return adapter.LendResult{}, err
		}
	} else {
		amount := nonNilBig(req.Amount.Int)
		var packErr error
		data, packErr = morphoBlueReadABI.Pack("repay", morphoMarketParamsArgs(params), amount, big.NewInt(0), account, []byte{})
		if packErr != nil {
			return adapter.LendResult{}, canon.Wrap("repay", canon.ErrSchema, packErr)
		}
		if err := a.approveForRepay(ctx, c, b, id, params, account, amount); err != nil {
			return adapter.LendResult{}, err
		}
	}

	hash, err := b.SendAndWait(ctx, calldata.Call{To: params.morpho, Data: data})
	if err != nil {
		return adapter.LendResult{}, canon.Wrap("repay", canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

func (a *MorphoAdapter) approveForRepay(ctx context.Context, c *chain.Client, b ChainBroadcaster, chainID int64, params morphoParamsTuple, account common.Address, amount *big.Int) error {
	_, err := erc20.EnsureAllowance(ctx, c, b, chainID, params.loanToken, account, params.morpho, amount, amount)
	return err
}

// SetCollateral is unsupported: Morpho Blue has no per-asset
// collateral-enable toggle, see Supports.
func (a *MorphoAdapter) SetCollateral(ctx context.Context, req adapter.SetCollateralRequest) (adapter.LendResult, error) {
	return adapter.LendResult{}, canon.Unsupportedf("set_collateral", "morpho", "morpho blue has no collateral-enable toggle")
}

const defaultMorphoRewardsAPIURL = "https://rewards.morpho.org"

// ClaimRewards pulls the account's current claimable snapshot (Merkle
// amount + proof) from the rewards API, then claims every named asset (or
// every asset the API reports when req.Assets is empty) against the
// Universal Rewards Distributor in one call each.
func (a *MorphoAdapter) ClaimRewards(ctx context.Context, req adapter.ClaimRewardsRequest) (adapter.ClaimRewardsResult, error) {
	id, err := parseChainID(req.ChainID)
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}
	distributor, ok := a.Distributor[id]
	if !ok {
		return adapter.ClaimRewardsResult{}, canon.Unsupportedf("claim_rewards", "morpho", "no rewards distributor configured for chain %s", req.ChainID)
	}
	b, err := a.broadcaster(id)
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}
	account := common.HexToAddress(req.Account)

	claims, err := a.fetchClaimableRewards(ctx, id, account)
	if err != nil {
		return adapter.ClaimRewardsResult{}, err
	}

	var lastHash string
	result := adapter.ClaimRewardsResult{}
	for _, claim := range claims {
		if len(req.Assets) > 0 && !containsFold(req.Assets, claim.reward.Hex()) {
			continue
		}
		if claim.claimable.Sign() <= 0 {
			continue
		}
		data, err := morphoURDABI.Pack("claim", account, claim.reward, claim.claimable, claim.proof)
		if err != nil {
			continue
		}
		hash, err := b.SendAndWait(ctx, calldata.Call{To: distributor, Data: data})
		if err != nil {
			continue
		}
		lastHash = hash.Hex()
		result.Claims = append(result.Claims, canon.RewardClaim{
			Token:     claim.reward.Hex(),
			AmountRaw: canon.NewBigInt(claim.claimable),
		})
	}
	result.TxHash = lastHash
	return result, nil
}

type morphoClaimable struct {
	reward    common.Address
	claimable *big.Int
	proof     [][32]byte
}

func (a *MorphoAdapter) rewardsAPIURL() string {
	if strings.TrimSpace(a.RewardsAPIURL) != "" {
		return a.RewardsAPIURL
	}
	return defaultMorphoRewardsAPIURL
}

func (a *MorphoAdapter) fetchClaimableRewards(ctx context.Context, chainID int64, account common.Address) ([]morphoClaimable, error) {
	url := a.rewardsAPIURL() + "/v1/users/" + account.Hex() + "/rewards"
	client := httpx.New(15*time.Second, 2)

	var raw struct {
		Data []struct {
			Asset struct {
				Address string `json:"address"`
			} `json:"asset"`
			Amount struct {
				Claimable string `json:"claimable"`
			} `json:"amount"`
			Proof []string `json:"proof"`
		} `json:"data"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, canon.Wrap("claim_rewards", canon.ErrSchema, err)
	}
	if _, err := client.DoJSON(ctx, req, &raw); err != nil {
		return nil, canon.Wrap("claim_rewards", canon.ErrRPC, err)
	}

	out := make([]morphoClaimable, 0, len(raw.Data))
	for _, d := range raw.Data {
		if !common.IsHexAddress(d.Asset.Address) {
			continue
		}
		claimable, ok := new(big.Int).SetString(strings.TrimSpace(d.Amount.Claimable), 10)
		if !ok {
			continue
		}
		proof := make([][32]byte, 0, len(d.Proof))
		for _, p := range d.Proof {
			proof = append(proof, common.HexToHash(p))
		}
		out = append(out, morphoClaimable{
			reward:    common.HexToAddress(d.Asset.Address),
			claimable: claimable,
			proof:     proof,
		})
	}
	return out, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// morphoMarketParamsABIArgs mirrors the planner's morphoMarketParamsABI
// struct: go-ethereum's abi.Pack matches a tuple input against a Go struct
// by `abi:` tag, not by positional slice, so the MarketParams argument to
// supply/withdraw/borrow/repay must be this shape rather than a plain list.
type morphoMarketParamsABIArgs struct {
	LoanToken       common.Address `abi:"loanToken"`
	CollateralToken common.Address `abi:"collateralToken"`
	Oracle          common.Address `abi:"oracle"`
	IRM             common.Address `abi:"irm"`
	LLTV            *big.Int       `abi:"lltv"`
}

func morphoMarketParamsArgs(p morphoParamsTuple) morphoMarketParamsABIArgs {
	return morphoMarketParamsABIArgs{
		LoanToken:       p.loanToken,
		CollateralToken: p.collateralToken,
		Oracle:          p.oracle,
		IRM:             p.irm,
		LLTV:            p.lltv,
	}
}
