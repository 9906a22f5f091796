package ratemath

import (
	"math"
	"math/big"
	"testing"
)

func TestAPYFromAPR(t *testing.T) {
	// Seed scenario 1: supply_apr ~ 0.05 -> supply_apy ~ 0.0513.
	apy := APYFromAPR(0.05)
	if math.Abs(apy-0.0513) > 1e-3 {
		t.Fatalf("apy = %v, want ~0.0513", apy)
	}
}

func TestTickRoundTrip(t *testing.T) {
	// Seed scenario 3.
	r := 0.10
	tick := TickFromRate(r, 1, false)
	got := RateFromTick(tick, 1)
	if math.Abs(got-r) > 1e-3 {
		t.Fatalf("rate_from_tick(tick_from_rate(%v)) = %v, want within 1e-3", r, got)
	}
}

func TestTickRoundTripProperty(t *testing.T) {
	for _, r := range []float64{0, 0.001, 0.01, 0.1, 0.5, 0.9} {
		tick := TickFromRate(r, 1, true)
		got := RateFromTick(tick, 1)
		if math.Abs(got-r) >= 1e-2 {
			t.Fatalf("round trip for %v diverged: got %v", r, got)
		}
	}
}

func TestTickStepCoercedToOne(t *testing.T) {
	if RateFromTick(10, 0) != RateFromTick(10, 1) {
		t.Fatal("tick_step <= 0 must coerce to 1")
	}
}

func TestNormalizeAPR(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.05 * 1e18, 0.05},
		{0.5 * 1e4, 0.5},
		{0.5 * 1e2, 0.5},
		{0.5, 0.5},
	}
	for _, c := range cases {
		got := NormalizeAPR(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("NormalizeAPR(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSupplyCapHeadroomAbsentWhenNoCap(t *testing.T) {
	if h := SupplyCapHeadroom(big.NewInt(0), 6, big.NewInt(1), big.NewInt(1), RAY); h != nil {
		t.Fatalf("expected nil headroom for zero cap, got %v", h)
	}
}

func TestSupplyCapHeadroomSeedScenario(t *testing.T) {
	// Seed scenario 2: supply_cap=100, decimals=6, availableLiquidity=10_000_000,
	// scaledVariableDebt=5_000_000, variableBorrowIndex=RAY.
	// headroom = 100*10^6 - (10_000_000+5_000_000) = 85_000_000.
	got := SupplyCapHeadroom(big.NewInt(100), 6, big.NewInt(10_000_000), big.NewInt(5_000_000), RAY)
	want := big.NewInt(85_000_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("headroom = %v, want %v", got, want)
	}
}

func TestSupplyCapHeadroomClampedToZero(t *testing.T) {
	got := SupplyCapHeadroom(big.NewInt(1), 6, big.NewInt(10_000_000), big.NewInt(0), RAY)
	if got.Sign() != 0 {
		t.Fatalf("headroom = %v, want 0 when usage exceeds cap", got)
	}
}
