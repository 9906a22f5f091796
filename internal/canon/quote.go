package canon

import "math/big"

// Quote is the result of quote_market: the best bid/ask/mid APR for a
// rate-swap market, either read off the market's embedded snapshot or
// derived from the live orderbook.
type Quote struct {
	MarketID   string   `json:"market_id"`
	BestBidAPR *float64 `json:"best_bid_apr,omitempty"`
	BestAskAPR *float64 `json:"best_ask_apr,omitempty"`
	MidAPR     *float64 `json:"mid_apr,omitempty"`
	FromBook   bool     `json:"from_book"`
}

// DeriveFromBook computes best_bid/best_ask/mid from orderbook depth:
// best_bid = max(long.ia)*tick_size, best_ask = min(short.ia)*tick_size,
// mid = (bid+ask)/2. longIA and shortIA are implied-APR ticks already
// converted by tick_size; callers pass the max/min of each side.
func DeriveFromBook(marketID string, maxLongIA, minShortIA float64) Quote {
	bid, ask := maxLongIA, minShortIA
	mid := (bid + ask) / 2
	return Quote{
		MarketID:   marketID,
		BestBidAPR: &bid,
		BestAskAPR: &ask,
		MidAPR:     &mid,
		FromBook:   true,
	}
}

// OrderSide is the direction of a rate-swap limit order: long pays fixed
// (bets rates rise), short receives fixed (bets rates fall).
type OrderSide string

const (
	SideLong  OrderSide = "long"
	SideShort OrderSide = "short"
)

// OrderStatus is the lifecycle state of a LimitOrder.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
)

// LimitOrder is a resting order on a rate-swap orderbook.
type LimitOrder struct {
	OrderID       string      `json:"order_id"`
	MarketID      string      `json:"market_id"`
	Side          OrderSide   `json:"side"`
	Size          BigInt      `json:"size"`
	LimitTick     int64       `json:"limit_tick"`
	LimitAPR      float64     `json:"limit_apr"`
	FilledSize    BigInt      `json:"filled_size"`
	RemainingSize BigInt      `json:"remaining_size"`
	Status        OrderStatus `json:"status"`
}

// Valid enforces remaining_size = size - filled_size >= 0.
func (o LimitOrder) Valid() bool {
	rem := new(big.Int).Sub(nonNilBig(o.Size.Int), nonNilBig(o.FilledSize.Int))
	return rem.Sign() >= 0 && rem.Cmp(nonNilBig(o.RemainingSize.Int)) == 0
}

func nonNilBig(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}
