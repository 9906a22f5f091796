package rateswap

import (
	"context"
	"fmt"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

type collateralsWire struct {
	Positions           []positionWire   `json:"positions"`
	Balances            []balanceWire    `json:"balances"`
	WithdrawalRequests   []withdrawalWire `json:"withdrawalRequests"`
}

type positionWire struct {
	MarketID   string `json:"marketId"`
	Underlying string `json:"underlying"`
	Side       string `json:"side"`
	SizeRaw    string `json:"sizeRaw"`
	Isolated   bool   `json:"isolated"`
	TokenID    string `json:"tokenId"`
}

type balanceWire struct {
	Underlying    string `json:"underlying"`
	Decimals      int    `json:"decimals"`
	AvailableRaw  string `json:"availableRaw"`
	PriceUSD      float64 `json:"priceUsd"`
}

type withdrawalWire struct {
	Underlying  string `json:"underlying"`
	AmountRaw   string `json:"amountRaw"`
	RequestedAt int64  `json:"requestedAt"`
}

// GetFullUserState rolls up an account's cross/isolated rate-swap positions,
// idle collateral balances, and in-flight cooldown withdrawals on the
// venue's home chain — unlike the lending-pool adapters there is only one
// chain to fan out over, since every market lives on HomeChainID.
func (a *BorosAdapter) GetFullUserState(ctx context.Context, account string) (canon.UserState, error) {
	const op = "get_full_user_state"
	chainID := a.homeChainID()
	chainIDStr := fmt.Sprintf("eip155:%d", chainID)

	state := canon.UserState{
		Protocol: "boros",
		Account:  account,
		Chains:   []string{chainIDStr},
	}

	if _, err := parseAccount(account); err != nil {
		state.AddChainError(chainIDStr, err.Error())
		return state, nil
	}

	var raw collateralsWire
	if err := a.get(ctx, op, pathCollaterals, map[string]string{
		"userAddress": account,
		"accountId":   itoa(int64(a.AccountID)),
	}, &raw); err != nil {
		state.AddChainError(chainIDStr, err.Error())
		return state, nil
	}

	for _, p := range raw.Positions {
		pos := canon.Position{
			ChainID:    chainIDStr,
			Protocol:   "boros",
			Underlying: p.Underlying,
			UsageAsCollateral: p.Isolated,
		}
		size := canon.NewBigInt(parseBigAny(p.SizeRaw))
		if p.Side == string(canon.SideShort) {
			pos.DebtRaw = size
		} else {
			pos.ShareOrBalanceRaw = size
		}
		state.Positions = append(state.Positions, pos)
	}

	for _, b := range raw.Balances {
		state.Positions = append(state.Positions, canon.Position{
			ChainID:           chainIDStr,
			Protocol:          "boros",
			Underlying:        b.Underlying,
			Decimals:          b.Decimals,
			ShareOrBalanceRaw: canon.NewBigInt(parseBigAny(b.AvailableRaw)),
			PriceUSD:          b.PriceUSD,
		})
	}

	for _, w := range raw.WithdrawalRequests {
		cooldown, _ := a.cooldownSeconds(ctx, chainID, account)
		unlocksAt := w.RequestedAt + cooldown
		state.QueuedWithdrawals = append(state.QueuedWithdrawals, canon.QueuedWithdrawal{
			Underlying:   w.Underlying,
			AmountRaw:    canon.NewBigInt(parseBigAny(w.AmountRaw)),
			RequestedAt:  w.RequestedAt,
			UnlocksAt:    unlocksAt,
			Withdrawable: nowFunc().Unix() >= unlocksAt,
		})
	}

	return state, nil
}
