package rateswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
)

// cooldownStatus reads the personal withdrawal cooldown, in seconds, off
// the home chain's MarketHub. A failed read (no RPC configured, reverted
// call) falls back to the advisory default rather than failing the caller,
// matching the reference client's "default_3600s" source tag.
func (a *BorosAdapter) cooldownStatus(ctx context.Context, chainID int64, account common.Address) int64 {
	hub, err := a.marketHub(chainID)
	if err != nil || a.Gateway == nil {
		return defaultWithdrawalCooldownSeconds
	}
	c, err := a.Gateway.ScopedClient(ctx, chainID)
	if err != nil {
		return defaultWithdrawalCooldownSeconds
	}
	call, err := calldata.EncodeCall(marketHubABI, hub, "getPersonalCooldown", account)
	if err != nil {
		return defaultWithdrawalCooldownSeconds
	}
	data, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return defaultWithdrawalCooldownSeconds
	}
	out, err := calldata.Decode(marketHubABI, "getPersonalCooldown", data)
	if err != nil || len(out) == 0 {
		return defaultWithdrawalCooldownSeconds
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return defaultWithdrawalCooldownSeconds
	}
	return v.Int64()
}

func (a *BorosAdapter) cooldownSeconds(ctx context.Context, chainID int64, account string) (int64, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return defaultWithdrawalCooldownSeconds, nil
	}
	return a.cooldownStatus(ctx, chainID, addr), nil
}

// SweepIsolatedToCross moves collateral out of an isolated market position
// (keyed by tokenID) into the account's cross-margin book, via the venue's
// cash-transfer calldata endpoint.
func (a *BorosAdapter) SweepIsolatedToCross(ctx context.Context, account, tokenID, marketID string) (adapter.LendResult, error) {
	const op = "sweep_isolated_to_cross"
	if _, err := parseAccount(account); err != nil {
		return adapter.LendResult{}, err
	}
	chainID := a.homeChainID()

	var body map[string]any
	if err := a.postJSON(ctx, op, pathCashTransfer, map[string]any{
		"userAddress": account,
		"accountId":   int64(a.AccountID),
		"tokenId":     tokenID,
		"marketId":    marketID,
		"direction":   "isolatedToCross",
	}, &body); err != nil {
		return adapter.LendResult{}, err
	}
	return a.broadcastCalldata(ctx, op, chainID, body)
}

// RequestWithdrawal opens the two-phase cooldown-gated withdrawal: the
// venue marks the request server-side and the position becomes eligible
// for FinalizeWithdrawal once the on-chain cooldown elapses.
func (a *BorosAdapter) RequestWithdrawal(ctx context.Context, account, underlying string, amount canon.BigInt) (adapter.LendResult, error) {
	const op = "request_withdrawal"
	if _, err := parseAccount(account); err != nil {
		return adapter.LendResult{}, err
	}
	chainID := a.homeChainID()

	var body map[string]any
	if err := a.postJSON(ctx, op, pathWithdrawRequest, map[string]any{
		"userAddress": account,
		"accountId":   int64(a.AccountID),
		"underlying":  underlying,
		"amount":      amount.String(),
	}, &body); err != nil {
		return adapter.LendResult{}, err
	}
	return a.broadcastCalldata(ctx, op, chainID, body)
}

// FinalizeWithdrawal is a raw on-chain call, not server-built calldata: the
// venue's API documents finalizeVaultWithdrawal but never builds a payload
// for it. It is only safe once the cooldown read off MarketHub reports
// elapsed >= cooldown; a premature call reverts on-chain and is surfaced
// as such rather than silently retried.
func (a *BorosAdapter) FinalizeWithdrawal(ctx context.Context, account, underlying string) (adapter.LendResult, error) {
	const op = "finalize_withdrawal"
	addr, err := parseAccount(account)
	if err != nil {
		return adapter.LendResult{}, err
	}
	chainID := a.homeChainID()
	hub, err := a.marketHub(chainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	b, err := a.broadcaster(chainID)
	if err != nil {
		return adapter.LendResult{}, err
	}

	tokenID := atoiOr(underlying, defaultCollateralTokenID)
	call, err := calldata.EncodeCall(marketHubABI, hub, "finalizeVaultWithdrawal", addr, uint16(tokenID))
	if err != nil {
		return adapter.LendResult{}, canon.Wrap(op, canon.ErrSchema, err)
	}
	hash, err := b.SendAndWait(ctx, call)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap(op, canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}
