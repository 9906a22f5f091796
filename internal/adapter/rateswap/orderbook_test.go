package rateswap

import (
	"math/big"
	"testing"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
)

func bigSize(v int64) canon.BigInt {
	return canon.NewBigInt(big.NewInt(v))
}

func levelAtRate(rate float64, tickStep int64, size int64) bookLevel {
	tick := ratemath.TickFromRate(rate, tickStep, false)
	return bookLevel{Tick: tick, Rate: ratemath.RateFromTick(tick, tickStep), Size: bigSize(size)}
}

func TestPickLimitTickForFillShortWalksLongSideDescending(t *testing.T) {
	const tickStep = 10
	book := orderBook{
		Long: []bookLevel{
			levelAtRate(0.06, tickStep, 100),
			levelAtRate(0.0595, tickStep, 100),
			levelAtRate(0.0400, tickStep, 100), // far past 50bps deviation from best
		},
	}
	tick, err := pickLimitTickForFill(book, canon.SideShort, bigSize(150), tickStep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rate := ratemath.RateFromTick(tick, tickStep)
	if rate > 0.06+1e-9 || rate < 0.0595-1e-9 {
		t.Fatalf("expected tick within first two levels' rate band, got rate %v", rate)
	}
}

func TestPickLimitTickForFillLongWalksShortSideAscending(t *testing.T) {
	const tickStep = 10
	book := orderBook{
		Short: []bookLevel{
			levelAtRate(0.05, tickStep, 50),
			levelAtRate(0.0505, tickStep, 50),
		},
	}
	tick, err := pickLimitTickForFill(book, canon.SideLong, bigSize(80), tickStep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rate := ratemath.RateFromTick(tick, tickStep)
	if rate < 0.0505-1e-9 {
		t.Fatalf("expected to have walked into the second level, got rate %v", rate)
	}
}

func TestPickLimitTickForFillStopsAtMaxDeviation(t *testing.T) {
	const tickStep = 1
	book := orderBook{
		Short: []bookLevel{
			levelAtRate(0.05, tickStep, 1),
			levelAtRate(0.10, tickStep, 1_000_000), // far beyond 50bps, must not be reached
		},
	}
	tick, err := pickLimitTickForFill(book, canon.SideLong, bigSize(1_000_000), tickStep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rate := ratemath.RateFromTick(tick, tickStep)
	if rate > 0.0550+1e-6 {
		t.Fatalf("expected walk to stop near best + 50bps, got rate %v", rate)
	}
}

func TestPickLimitTickForFillEmptyBookErrors(t *testing.T) {
	if _, err := pickLimitTickForFill(orderBook{}, canon.SideLong, bigSize(1), 10); err == nil {
		t.Fatal("expected error for empty opposing side")
	}
}

func TestQuoteFromBook(t *testing.T) {
	const tickStep = 10
	book := orderBook{
		Long:  []bookLevel{levelAtRate(0.05, tickStep, 10)},
		Short: []bookLevel{levelAtRate(0.06, tickStep, 10)},
	}
	q := quoteFromBook("m1", book)
	if !q.FromBook {
		t.Fatal("expected FromBook=true")
	}
	if q.BestBidAPR == nil || q.BestAskAPR == nil || q.MidAPR == nil {
		t.Fatal("expected all three apr fields populated")
	}
	if *q.BestBidAPR >= *q.BestAskAPR {
		t.Fatalf("expected bid < ask, got bid=%v ask=%v", *q.BestBidAPR, *q.BestAskAPR)
	}
}
