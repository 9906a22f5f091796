// Package adapter defines the capability-typed contract every protocol
// adapter implements: a subset of get_all_markets, get_full_user_state,
// lend, unlend, borrow, repay, set_collateral, and claim_rewards. Each
// operation returns (T, error) with a *canon.AdapterError on failure in
// place of the source convention's (bool, value_or_str) tuple.
package adapter

import (
	"context"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

// Capability names the operations an adapter may support. Supports(cap)
// reports false for operations the protocol genuinely does not offer
// (e.g. a money-market adapter has no SetCollateral analogue) — that is
// distinct from an operation that exists but fails at runtime.
type Capability string

const (
	CapGetAllMarkets    Capability = "get_all_markets"
	CapGetFullUserState Capability = "get_full_user_state"
	CapLend             Capability = "lend"
	CapUnlend           Capability = "unlend"
	CapBorrow           Capability = "borrow"
	CapRepay            Capability = "repay"
	CapSetCollateral    Capability = "set_collateral"
	CapClaimRewards     Capability = "claim_rewards"
)

// LendRequest is the common shape for lend/unlend/borrow/repay: move `amount`
// base units of `underlying` on `chainID` on behalf of `account`. Native
// makes Lend wrap the native asset through the adapter's WrappedNative
// contract before supplying; Unlend, Borrow and Repay ignore Native and
// move the ERC20 reserve token as given, with no unwrap step. Full
// requests MaxUint256 and lets the pool compute the maximum.
type LendRequest struct {
	ChainID    string
	Underlying string
	Account    string
	Amount     canon.BigInt
	Native     bool
	Full       bool
}

// LendResult is the outcome of a state-changing lend-family operation: the
// transaction hash(es) broadcast, in order.
type LendResult struct {
	TxHashes []string
}

type SetCollateralRequest struct {
	ChainID    string
	Underlying string
	Account    string
	Enabled    bool
}

type ClaimRewardsRequest struct {
	ChainID string
	Account string
	Assets  []string // explicit asset list; empty means "derive from the lens"
}

type ClaimRewardsResult struct {
	TxHash string
	Claims []canon.RewardClaim
}

// LendingPoolAdapter is the capability set a variable-rate lending-pool
// protocol (Aave-v3-style, Morpho Blue) implements.
type LendingPoolAdapter interface {
	Supports(cap Capability) bool

	GetAllMarkets(ctx context.Context, chainID string, includeRewards bool) ([]canon.LendingMarket, error)
	GetFullUserState(ctx context.Context, account string, chainIDs []string, includeZeroPositions bool) (canon.UserState, error)

	Lend(ctx context.Context, req LendRequest) (LendResult, error)
	Unlend(ctx context.Context, req LendRequest) (LendResult, error)
	Borrow(ctx context.Context, req LendRequest) (LendResult, error)
	Repay(ctx context.Context, req LendRequest) (LendResult, error)
	SetCollateral(ctx context.Context, req SetCollateralRequest) (LendResult, error)
	ClaimRewards(ctx context.Context, req ClaimRewardsRequest) (ClaimRewardsResult, error)
}

// RateSwapQuoteRequest asks for a market-ish fill price by walking book
// depth from the opposing side.
type RateSwapQuoteRequest struct {
	MarketID string
	Side     canon.OrderSide
	Size     canon.BigInt
}

type PlaceOrderRequest struct {
	MarketID  string
	Account   string
	Side      canon.OrderSide
	Size      canon.BigInt
	LimitTick *int64 // nil selects an orderbook-depth-derived tick from the current book
}

type PlaceOrderResult struct {
	Order   canon.LimitOrder
	TxHash  string
}

// RateSwapAdapter is the capability set a fixed-rate order-book venue
// (Boros-style) implements.
type RateSwapAdapter interface {
	ListMarketsAll(ctx context.Context) ([]canon.RateSwapMarket, error)
	QuoteMarket(ctx context.Context, market canon.RateSwapMarket) (canon.Quote, error)
	QuoteFill(ctx context.Context, req RateSwapQuoteRequest) (canon.Quote, error)

	GetFullUserState(ctx context.Context, account string) (canon.UserState, error)

	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	CancelOrder(ctx context.Context, account, orderID string) (LendResult, error)
	ClosePosition(ctx context.Context, account, marketID string) (LendResult, error)

	SweepIsolatedToCross(ctx context.Context, account, tokenID, marketID string) (LendResult, error)
	RequestWithdrawal(ctx context.Context, account, underlying string, amount canon.BigInt) (LendResult, error)
	FinalizeWithdrawal(ctx context.Context, account, underlying string) (LendResult, error)

	QuoteBridge(ctx context.Context, account, destChainID string, amount canon.BigInt) (canon.Quote, error)
	SendBridge(ctx context.Context, account, destChainID string, amount canon.BigInt) (LendResult, error)
}
