package canon

// LendingMarket is the canonical shape for a variable-rate lending reserve,
// independent of which pool protocol (Aave-v3-style, Morpho Blue) sourced it.
type LendingMarket struct {
	ChainID      string `json:"chain_id"`
	Pool         string `json:"pool"`
	Underlying   string `json:"underlying"`
	SymbolCanon  string `json:"symbol_canonical"`
	Decimals     int    `json:"decimals"`
	AToken       string `json:"a_token,omitempty"`
	VarDebtToken string `json:"variable_debt_token,omitempty"`

	LTVBps                  int     `json:"ltv_bps"`
	LiquidationThresholdBps int     `json:"liquidation_threshold_bps"`
	PriceUSD                float64 `json:"price_usd"`

	SupplyAPR         float64 `json:"supply_apr"`
	SupplyAPY         float64 `json:"supply_apy"`
	VariableBorrowAPR float64 `json:"variable_borrow_apr"`
	VariableBorrowAPY float64 `json:"variable_borrow_apy"`

	AvailableLiquidity BigInt `json:"available_liquidity"`
	TotalVariableDebt  BigInt `json:"total_variable_debt"`
	TVL                BigInt `json:"tvl"`

	SupplyCap         BigInt  `json:"supply_cap"`
	SupplyCapHeadroom *BigInt `json:"supply_cap_headroom,omitempty"`
	BorrowCap         BigInt  `json:"borrow_cap"`

	Flags      LendingMarketFlags `json:"flags"`
	Incentives []Incentive        `json:"incentives,omitempty"`
}

type LendingMarketFlags struct {
	Active            bool `json:"active"`
	Frozen            bool `json:"frozen"`
	Paused            bool `json:"paused"`
	Siloed            bool `json:"siloed"`
	Stable            bool `json:"stable"`
	CollateralEnabled bool `json:"collateral_enabled"`
	BorrowingEnabled  bool `json:"borrowing_enabled"`
}

// IncentiveSide is the leg of a lending position an incentive reward streams
// to.
type IncentiveSide string

const (
	IncentiveSupply IncentiveSide = "supply"
	IncentiveBorrow IncentiveSide = "borrow"
)

type Incentive struct {
	Side              IncentiveSide `json:"side"`
	Token             string        `json:"token"`
	Symbol            string        `json:"symbol"`
	APR               float64       `json:"apr"`
	EmissionPerSecond BigInt        `json:"emission_per_second"`
	DistributionEnd   *int64        `json:"distribution_end,omitempty"`
	PriceUSD          float64       `json:"price_usd"`
}

// RateSwapMarket is the canonical shape for a fixed-rate order-book market
// (tick-encoded APR, maturity-dated).
type RateSwapMarket struct {
	MarketID         string   `json:"market_id"`
	Address          string   `json:"address"`
	Symbol           string   `json:"symbol"`
	Underlying       string   `json:"underlying"`
	CollateralTokenID string  `json:"collateral_token_id"`
	TickStep         int64    `json:"tick_step"`
	MaturityTS       int64    `json:"maturity_ts"`
	TenorDays        float64  `json:"tenor_days"`
	MidAPR           *float64 `json:"mid_apr,omitempty"`
	BestBidAPR       *float64 `json:"best_bid_apr,omitempty"`
	BestAskAPR       *float64 `json:"best_ask_apr,omitempty"`
	MarkAPR          *float64 `json:"mark_apr,omitempty"`
	FloatingAPR      *float64 `json:"floating_apr,omitempty"`
	Volume24h        *BigInt  `json:"volume_24h,omitempty"`
	NotionalOI       *BigInt  `json:"notional_oi,omitempty"`
}

// Valid enforces the rate-swap market invariants: tick_step >= 1,
// tenor_days >= 0.
func (m RateSwapMarket) Valid() bool {
	return m.TickStep >= 1 && m.TenorDays >= 0
}
