package lendingpool

import (
	"math/big"
	"testing"

	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
)

func packMorphoOutputs(t *testing.T, fn string, args ...any) []byte {
	t.Helper()
	method, ok := morphoBlueReadABI.Methods[fn]
	if !ok {
		t.Fatalf("unknown method %s", fn)
	}
	data, err := method.Outputs.Pack(args...)
	if err != nil {
		t.Fatalf("pack %s: %v", fn, err)
	}
	return data
}

func TestDecodeMorphoMarketRoundTrip(t *testing.T) {
	data := packMorphoOutputs(t, "market",
		big.NewInt(1_000_000), big.NewInt(999_000_000), big.NewInt(500_000), big.NewInt(499_500_000),
		big.NewInt(1700000000), big.NewInt(0))
	tsa, tss, tba, tbs, ok := decodeMorphoMarket(multicall.Result{Bytes: data})
	if !ok {
		t.Fatal("expected decodeMorphoMarket to succeed")
	}
	if tsa.Int64() != 1_000_000 || tss.Int64() != 999_000_000 {
		t.Fatalf("unexpected supply totals: %v %v", tsa, tss)
	}
	if tba.Int64() != 500_000 || tbs.Int64() != 499_500_000 {
		t.Fatalf("unexpected borrow totals: %v %v", tba, tbs)
	}
}

func TestDecodeMorphoMarketFailedSlot(t *testing.T) {
	if _, _, _, _, ok := decodeMorphoMarket(multicall.Result{Err: errTest}); ok {
		t.Fatal("expected decodeMorphoMarket to fail on a failed slot")
	}
}

func TestDecodeMorphoPositionRoundTrip(t *testing.T) {
	data := packMorphoOutputs(t, "position", big.NewInt(123_000_000), big.NewInt(0), big.NewInt(5_000_000))
	ss, bs, coll, ok := decodeMorphoPosition(multicall.Result{Bytes: data})
	if !ok {
		t.Fatal("expected decodeMorphoPosition to succeed")
	}
	if ss.Int64() != 123_000_000 || bs.Int64() != 0 || coll.Int64() != 5_000_000 {
		t.Fatalf("unexpected position: %v %v %v", ss, bs, coll)
	}
}

func TestSharesToAssets(t *testing.T) {
	// A market with 1e12 total supply assets backing 1e12 + virtual shares:
	// a 1e6-share deposit should redeem to roughly the same proportion of
	// assets, accounting for the virtual-liquidity offset.
	totalAssets := big.NewInt(1_000_000_000_000)
	totalShares := big.NewInt(1_000_000_000_000)
	assets := sharesToAssets(big.NewInt(1_000_000), totalShares, totalAssets)
	if assets.Sign() <= 0 {
		t.Fatalf("expected positive assets, got %v", assets)
	}
	// Redeeming the zero share balance always yields zero assets.
	if got := sharesToAssets(big.NewInt(0), totalShares, totalAssets); got.Sign() != 0 {
		t.Fatalf("expected zero assets for zero shares, got %v", got)
	}
}

func TestMorphoMarketFromGraphQL(t *testing.T) {
	item := morphoGraphQLMarket{}
	item.LoanAsset.Address = "0x0000000000000000000000000000000000000a"
	item.LoanAsset.Symbol = "usdc"
	item.LoanAsset.Decimals = 6
	item.LLTV = "860000000000000000" // 86% WAD-scaled
	item.Morpho.Address = "0x0000000000000000000000000000000000000b"
	item.State.SupplyAssets = "1000000"
	item.State.BorrowAssets = "400000"
	item.State.LiquidityAssets = "600000"
	item.State.SupplyApy = 0.032
	item.State.BorrowApy = 0.05

	m, ok := morphoMarketFromGraphQL("eip155:1", item)
	if !ok {
		t.Fatal("expected morphoMarketFromGraphQL to succeed")
	}
	if m.LTVBps != 8600 || m.LiquidationThresholdBps != 8600 {
		t.Fatalf("unexpected lltv bps: %d", m.LTVBps)
	}
	if m.SymbolCanon != "USDC" {
		t.Fatalf("unexpected symbol: %s", m.SymbolCanon)
	}
	if m.SupplyAPR != 0.032 || m.VariableBorrowAPR != 0.05 {
		t.Fatalf("unexpected rates: %+v", m)
	}
}

func TestMorphoMarketFromGraphQLMissingLoanAsset(t *testing.T) {
	if _, ok := morphoMarketFromGraphQL("eip155:1", morphoGraphQLMarket{}); ok {
		t.Fatal("expected morphoMarketFromGraphQL to reject a market with no loan asset address")
	}
}
