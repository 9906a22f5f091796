package canon

// Position is one account's exposure to a single underlying within a single
// protocol on a single chain.
type Position struct {
	ChainID    string `json:"chain_id"`
	Protocol   string `json:"protocol"`
	Underlying string `json:"underlying"`
	Decimals   int    `json:"decimals"`

	ShareOrBalanceRaw BigInt `json:"share_or_balance_raw"`
	DebtRaw           BigInt `json:"debt_raw"`

	UsageAsCollateral bool `json:"usage_as_collateral"`

	SupplyAPY       float64 `json:"supply_apy"`
	BorrowAPY       float64 `json:"borrow_apy"`
	RewardSupplyAPR float64 `json:"reward_supply_apr"`
	RewardBorrowAPR float64 `json:"reward_borrow_apr"`

	PriceUSD float64  `json:"price_usd"`
	USDValue *float64 `json:"usd_value,omitempty"`
}

// ExclusiveSides reports whether at most one of ShareOrBalanceRaw and
// DebtRaw is non-zero. Protocols that isolate supply and borrow into
// separate position objects (e.g. Aave's aToken vs. variable debt token)
// enforce this; protocols with a single netted position (Morpho Blue) do
// not, and callers should not check it for those.
func (p Position) ExclusiveSides() bool {
	return p.ShareOrBalanceRaw.IsZero() || p.DebtRaw.IsZero()
}

// QueuedWithdrawal represents one in-flight cooldown-gated withdrawal on a
// rate-swap venue.
type QueuedWithdrawal struct {
	Underlying   string `json:"underlying"`
	AmountRaw    BigInt `json:"amount_raw"`
	RequestedAt  int64  `json:"requested_at"`
	UnlocksAt    int64  `json:"unlocks_at"`
	Withdrawable bool   `json:"withdrawable"`
}

// RewardClaim is a claimable-but-unclaimed reward balance surfaced in
// UserState.Rewards.
type RewardClaim struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	AmountRaw BigInt `json:"amount_raw"`
}

// UserState is the account-level rollup across every chain an adapter was
// asked to query.
type UserState struct {
	Protocol string   `json:"protocol"`
	Account  string   `json:"account"`
	Chains   []string `json:"chains"`

	Positions []Position `json:"positions"`
	Errors    []string   `json:"errors,omitempty"`

	Rewards           []RewardClaim      `json:"rewards,omitempty"`
	QueuedWithdrawals []QueuedWithdrawal `json:"queued_withdrawals,omitempty"`
}

// AddChainError records a per-chain fan-out failure: the chain is recorded
// as attempted but contributes no positions, never a partial set.
func (u *UserState) AddChainError(chainID, msg string) {
	u.Errors = append(u.Errors, chainID+": "+msg)
}
