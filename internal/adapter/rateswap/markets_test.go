package rateswap

import (
	"testing"
	"time"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

func TestDecodeRateSwapMarketDefaultsTickStep(t *testing.T) {
	m := decodeRateSwapMarket(marketWire{MarketID: "m1", TickStep: 0})
	if m.TickStep != 1 {
		t.Fatalf("expected tick step to default to 1, got %d", m.TickStep)
	}
	if !m.Valid() {
		t.Fatal("expected decoded market to satisfy Valid()")
	}
}

func TestTimeToMaturityDays(t *testing.T) {
	fixedNow := time.Unix(1_700_000_000, 0)
	restore := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = restore }()

	maturity := fixedNow.Add(10 * 24 * time.Hour).Unix()
	days := timeToMaturityDays(maturity)
	if days < 9.99 || days > 10.01 {
		t.Fatalf("expected ~10 days, got %v", days)
	}

	if d := timeToMaturityDays(0); d != 0 {
		t.Fatalf("expected 0 for unset maturity, got %v", d)
	}
	if d := timeToMaturityDays(fixedNow.Add(-time.Hour).Unix()); d != 0 {
		t.Fatalf("expected past maturity to clamp to 0, got %v", d)
	}
}

func TestQuoteMarketPrefersEmbeddedSnapshot(t *testing.T) {
	mid := 0.05
	market := canon.RateSwapMarket{MarketID: "m1", TickStep: 10, MidAPR: &mid}
	a := &BorosAdapter{}
	q, err := a.QuoteMarket(nil, market) //nolint:staticcheck // pure snapshot path never touches ctx
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FromBook {
		t.Fatal("expected embedded snapshot path, not FromBook")
	}
	if q.MidAPR == nil || *q.MidAPR != mid {
		t.Fatalf("expected mid apr %v, got %v", mid, q.MidAPR)
	}
}
