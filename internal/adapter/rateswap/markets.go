package rateswap

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
)

const marketsPageSize = 100

type marketWire struct {
	MarketID   string  `json:"marketId"`
	Address    string  `json:"address"`
	Symbol     string  `json:"symbol"`
	Underlying string  `json:"underlying"`
	TickStep   int64   `json:"tickStep"`
	MaturityTS int64   `json:"maturityTimestamp"`
	MidAPR     *float64 `json:"markApr"`
	BidAPR     *float64 `json:"bestBidApr"`
	AskAPR     *float64 `json:"bestAskApr"`
	FloatAPR   *float64 `json:"floatingApr"`
	Volume24h  string  `json:"volume24h"`
	NotionalOI string  `json:"notionalOi"`
}

type marketsPage struct {
	Markets []marketWire `json:"markets"`
	Data    []marketWire `json:"data"`
	HasMore bool         `json:"hasMore"`
}

// ListMarketsAll pages through every live market on the venue, deduping by
// market id across pages the way the reference client's cursor loop does.
func (a *BorosAdapter) ListMarketsAll(ctx context.Context) ([]canon.RateSwapMarket, error) {
	const op = "list_markets_all"
	seen := map[string]bool{}
	var out []canon.RateSwapMarket

	for page := 0; ; page++ {
		var resp marketsPage
		if err := a.get(ctx, op, pathMarketsList, map[string]string{
			"limit":  itoa(marketsPageSize),
			"offset": itoa(int64(page) * marketsPageSize),
		}, &resp); err != nil {
			return nil, err
		}
		wire := resp.Markets
		if len(wire) == 0 {
			wire = resp.Data
		}
		if len(wire) == 0 {
			break
		}
		for _, w := range wire {
			if w.MarketID == "" || seen[w.MarketID] {
				continue
			}
			seen[w.MarketID] = true
			out = append(out, decodeRateSwapMarket(w))
		}
		if !resp.HasMore && len(wire) < marketsPageSize {
			break
		}
		if !resp.HasMore {
			break
		}
	}
	return out, nil
}

func decodeRateSwapMarket(w marketWire) canon.RateSwapMarket {
	tickStep := w.TickStep
	if tickStep < 1 {
		tickStep = 1
	}
	m := canon.RateSwapMarket{
		MarketID:          w.MarketID,
		Address:           w.Address,
		Symbol:            w.Symbol,
		Underlying:        w.Underlying,
		CollateralTokenID: itoa(defaultCollateralTokenID),
		TickStep:          tickStep,
		MaturityTS:        w.MaturityTS,
		TenorDays:         timeToMaturityDays(w.MaturityTS),
		MidAPR:            w.MidAPR,
		BestBidAPR:        w.BidAPR,
		BestAskAPR:        w.AskAPR,
		MarkAPR:           w.MidAPR,
		FloatingAPR:       w.FloatAPR,
	}
	if v, ok := parseOptionalBig(w.Volume24h); ok {
		bi := canon.NewBigInt(v)
		m.Volume24h = &bi
	}
	if v, ok := parseOptionalBig(w.NotionalOI); ok {
		bi := canon.NewBigInt(v)
		m.NotionalOI = &bi
	}
	return m
}

func timeToMaturityDays(maturityTS int64) float64 {
	if maturityTS <= 0 {
		return 0
	}
	remaining := time.Unix(maturityTS, 0).Sub(nowFunc())
	days := remaining.Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

func parseOptionalBig(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	v := parseBigAny(s)
	return v, true
}

// QuoteMarket prefers the market's embedded snapshot (mid/bid/ask as last
// reported by the venue); when that snapshot is empty it falls back to
// deriving a quote from the live orderbook.
func (a *BorosAdapter) QuoteMarket(ctx context.Context, market canon.RateSwapMarket) (canon.Quote, error) {
	if market.MidAPR != nil || market.BestBidAPR != nil || market.BestAskAPR != nil {
		return canon.Quote{
			MarketID:   market.MarketID,
			BestBidAPR: market.BestBidAPR,
			BestAskAPR: market.BestAskAPR,
			MidAPR:     market.MidAPR,
			FromBook:   false,
		}, nil
	}
	book, err := a.fetchOrderBook(ctx, market.MarketID, market.TickStep)
	if err != nil {
		return canon.Quote{}, err
	}
	return quoteFromBook(market.MarketID, book), nil
}

// QuoteFill estimates the fill price for req.Size on req.Side by walking
// the opposing side of the live book and reporting the resulting implied
// rate as both best_bid/best_ask (the two sides of the same walked price),
// matching the venue's "depth-at-size" quoting convention.
func (a *BorosAdapter) QuoteFill(ctx context.Context, req adapter.RateSwapQuoteRequest) (canon.Quote, error) {
	const op = "quote_fill"
	tickStep, err := a.marketTickStep(ctx, req.MarketID)
	if err != nil {
		return canon.Quote{}, err
	}
	book, err := a.fetchOrderBook(ctx, req.MarketID, tickStep)
	if err != nil {
		return canon.Quote{}, err
	}
	tick, err := pickLimitTickForFill(book, req.Side, req.Size, tickStep)
	if err != nil {
		return canon.Quote{}, canon.Wrap(op, canon.ErrProtocol, err)
	}
	rate := ratemath.RateFromTick(tick, tickStep)
	return canon.Quote{MarketID: req.MarketID, BestBidAPR: &rate, BestAskAPR: &rate, MidAPR: &rate, FromBook: true}, nil
}

// marketTickStep looks up a market's tick_step by scanning ListMarketsAll;
// the venue's orderbook endpoint itself is keyed by market id only.
func (a *BorosAdapter) marketTickStep(ctx context.Context, marketID string) (int64, error) {
	markets, err := a.ListMarketsAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range markets {
		if m.MarketID == marketID {
			return m.TickStep, nil
		}
	}
	return 0, canon.NewAdapterError("market_tick_step", canon.ErrInput, "unknown market id: "+marketID)
}
