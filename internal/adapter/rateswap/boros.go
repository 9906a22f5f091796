// Package rateswap implements adapter.RateSwapAdapter for a fixed-rate,
// order-book interest-rate-swap venue (Boros-style): maturity-dated markets
// quoted in tick-encoded APR, server-built calldata for every state change,
// and a two-phase cooldown-gated withdrawal. Almost every write is a
// fetch-calldata-then-broadcast round trip against the venue's REST API
// rather than local ABI encoding — the chain is only touched directly for
// the withdrawal-cooldown read, the finalize-withdrawal call, and the
// LayerZero OFT bridge.
package rateswap

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/httpx"
	"github.com/wayfinder-paths/adapter-runtime/internal/registry"
)

var (
	marketHubABI = calldata.ParseABI(registry.BorosMarketHubABI)
	oftABI       = calldata.ParseABI(registry.LayerZeroOFTABI)
)

const (
	defaultBaseURL = "https://api.boros.finance"

	// defaultCollateralTokenID/defaultCollateralDecimals are the venue's
	// conventional default margin asset (a 6-decimal stablecoin); the
	// RateSwapAdapter contract has no per-call token-id parameter, so every
	// operation that needs one (market-account packing, balance rollups)
	// uses this default the way the reference client's keyword defaults do.
	defaultCollateralTokenID = 3
	defaultCollateralDecimals = 6

	// defaultWithdrawalCooldownSeconds is the advisory fallback used when
	// the on-chain cooldown read fails, matching the reference client's
	// "default_3600s" source tag.
	defaultWithdrawalCooldownSeconds = 3600

	// marketAccCrossMarginMarker is the 3-byte market id field of a
	// MarketAcc that denotes the cross-margin account rather than a single
	// isolated market.
	marketAccCrossMarginMarker = "ffffff"

	// maxTickDeviationBps bounds how far pickLimitTickForFill will
	// walk into the book before giving up on guaranteeing a fill.
	maxTickDeviationBps = 50.0
)

// BorosAdapter implements adapter.RateSwapAdapter against the venue's REST
// API plus a small amount of direct on-chain access (MarketHub cooldown
// read/finalize, LayerZero OFT bridge).
type BorosAdapter struct {
	Gateway    *chain.Gateway
	HTTP       *httpx.Client
	BaseURL    string // defaults to defaultBaseURL
	AccountID  uint8  // sub-account index packed into MarketAcc; 0 for the default account

	// HomeChainID is the chain the venue's MarketHub/Router contracts and
	// all rate-swap markets live on.
	HomeChainID int64

	MarketHub    map[int64]common.Address // chain id -> MarketHub contract
	Router       map[int64]common.Address // chain id -> fixed multi-tx calldata router
	HypeOFT      map[int64]common.Address // chain id -> LayerZero OFT contract
	Broadcasters map[int64]ChainBroadcaster
}

// ChainBroadcaster is the narrow send surface this adapter needs per chain;
// internal/execution.ChainBroadcaster implements it.
type ChainBroadcaster interface {
	SendAndWait(ctx context.Context, call calldata.Call) (common.Hash, error)
	SendValueAndWait(ctx context.Context, call calldata.Call, value *big.Int) (common.Hash, error)
}

func (a *BorosAdapter) broadcaster(chainID int64) (ChainBroadcaster, error) {
	b, ok := a.Broadcasters[chainID]
	if !ok {
		return nil, canon.NewAdapterError("broadcast", canon.ErrConfig, "no broadcaster configured for chain")
	}
	return b, nil
}

func (a *BorosAdapter) baseURL() string {
	if strings.TrimSpace(a.BaseURL) != "" {
		return strings.TrimSpace(a.BaseURL)
	}
	return defaultBaseURL
}

func (a *BorosAdapter) httpClient() *httpx.Client {
	if a.HTTP != nil {
		return a.HTTP
	}
	return httpx.New(15*time.Second, 2)
}

func (a *BorosAdapter) homeChainID() int64 {
	if a.HomeChainID != 0 {
		return a.HomeChainID
	}
	return registry.ChainIDArbitrumOne
}

func (a *BorosAdapter) marketHub(chainID int64) (common.Address, error) {
	addr, ok := a.MarketHub[chainID]
	if !ok {
		return common.Address{}, canon.NewAdapterError("market_hub", canon.ErrConfig, "no market hub configured for chain")
	}
	return addr, nil
}

func (a *BorosAdapter) router(chainID int64) (common.Address, error) {
	addr, ok := a.Router[chainID]
	if !ok {
		return common.Address{}, canon.NewAdapterError("router", canon.ErrConfig, "no router configured for chain")
	}
	return addr, nil
}

func parseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, canon.NewAdapterError("parse_account", canon.ErrInput, "invalid account address: "+account)
	}
	return common.HexToAddress(account), nil
}

// parseChainID strips an optional "eip155:" CAIP-2 prefix and parses the
// remainder as a decimal chain id, mirroring the lending-pool adapters'
// convention.
func parseChainID(chainID string) (int64, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(chainID, "eip155:"), 10)
	if !ok {
		return 0, canon.NewAdapterError("parse_chain_id", canon.ErrInput, "invalid chain id: "+chainID)
	}
	return v.Int64(), nil
}

func atoiOr(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
