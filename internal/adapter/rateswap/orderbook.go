package rateswap

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
)

func nonNilBigInt(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}

// bookLevel is one resting price level: tick is the venue's integer tick
// encoding, rate the decimal APR RateFromTick(tick, tickStep) resolves to,
// and size the remaining base-unit notional at that tick.
type bookLevel struct {
	Tick int64
	Rate float64
	Size canon.BigInt
}

// orderBook holds both sides of a market's resting orders. Long (bid)
// levels are sorted best-first (highest rate first); short (ask) levels
// best-first (lowest rate first) — the convention pickLimitTickForFill
// and DeriveFromBook both depend on.
type orderBook struct {
	Long  []bookLevel
	Short []bookLevel
}

func (b orderBook) bestLong() (bookLevel, bool) {
	if len(b.Long) == 0 {
		return bookLevel{}, false
	}
	return b.Long[0], true
}

func (b orderBook) bestShort() (bookLevel, bool) {
	if len(b.Short) == 0 {
		return bookLevel{}, false
	}
	return b.Short[0], true
}

func (a *BorosAdapter) fetchOrderBook(ctx context.Context, marketID string, tickStep int64) (orderBook, error) {
	var raw struct {
		Bids []bookLevelWire `json:"bids"`
		Asks []bookLevelWire `json:"asks"`
		Long []bookLevelWire `json:"long"`
		Short []bookLevelWire `json:"short"`
	}
	if err := a.get(ctx, "fetch_order_book", pathOrderBook+marketID, map[string]string{
		"tickSize": itoa(tickStep),
	}, &raw); err != nil {
		return orderBook{}, err
	}

	longWire := raw.Long
	if len(longWire) == 0 {
		longWire = raw.Bids
	}
	shortWire := raw.Short
	if len(shortWire) == 0 {
		shortWire = raw.Asks
	}

	book := orderBook{
		Long:  decodeLevels(longWire, tickStep),
		Short: decodeLevels(shortWire, tickStep),
	}
	sort.Slice(book.Long, func(i, j int) bool { return book.Long[i].Rate > book.Long[j].Rate })
	sort.Slice(book.Short, func(i, j int) bool { return book.Short[i].Rate < book.Short[j].Rate })
	return book, nil
}

type bookLevelWire struct {
	Tick int64  `json:"tick"`
	Size string `json:"size"`
}

func decodeLevels(wire []bookLevelWire, tickStep int64) []bookLevel {
	out := make([]bookLevel, 0, len(wire))
	for _, w := range wire {
		out = append(out, bookLevel{
			Tick: w.Tick,
			Rate: ratemath.RateFromTick(w.Tick, tickStep),
			Size: canon.NewBigInt(parseBigAny(w.Size)),
		})
	}
	return out
}

// quoteFromBook derives a canon.Quote from the current book, per
// DeriveFromBook's best_bid=max(long.rate)/best_ask=min(short.rate)
// convention; the book is already sorted best-first on both sides.
func quoteFromBook(marketID string, book orderBook) canon.Quote {
	var bid, ask float64
	if l, ok := book.bestLong(); ok {
		bid = l.Rate
	}
	if s, ok := book.bestShort(); ok {
		ask = s.Rate
	}
	return canon.DeriveFromBook(marketID, bid, ask)
}

// pickLimitTickForFill walks the book side opposing side to accumulate size,
// matching _pick_limit_tick_for_fill: a short order walks the long (bid)
// side from best descending, a long order walks the short (ask) side from
// best ascending, stopping once the requested size is accumulated or the
// walk has moved maxTickDeviationBps away from the best level on that side.
// The resulting implied rate is converted back to a tick with round_down set
// for the short side, matching the venue's crossing convention.
func pickLimitTickForFill(book orderBook, side canon.OrderSide, size canon.BigInt, tickStep int64) (int64, error) {
	var levels []bookLevel
	switch side {
	case canon.SideShort:
		levels = book.Long
	case canon.SideLong:
		levels = book.Short
	default:
		return 0, canon.NewAdapterError("pick_limit_tick", canon.ErrInput, fmt.Sprintf("unknown order side: %s", side))
	}
	if len(levels) == 0 {
		return 0, canon.NewAdapterError("pick_limit_tick", canon.ErrProtocol, "orderbook has no liquidity on the opposing side")
	}

	best := levels[0].Rate
	remaining := new(big.Int).Set(nonNilBigInt(size.Int))
	chosen := levels[0].Rate
	for _, level := range levels {
		deviationBps := math.Abs(level.Rate-best) * 10000
		if deviationBps > maxTickDeviationBps {
			break
		}
		chosen = level.Rate
		remaining.Sub(remaining, nonNilBigInt(level.Size.Int))
		if remaining.Sign() <= 0 {
			break
		}
	}

	roundDown := side == canon.SideShort
	return ratemath.TickFromRate(chosen, tickStep, roundDown), nil
}
