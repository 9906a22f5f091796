package registry

import "testing"

func TestTaikoSwapContracts(t *testing.T) {
	quoter, router, ok := TaikoSwapContracts(167000)
	if !ok {
		t.Fatal("expected taiko mainnet contracts to exist")
	}
	if quoter == "" || router == "" {
		t.Fatalf("unexpected empty taikoswap contract values: quoter=%q router=%q", quoter, router)
	}

	if _, _, ok := TaikoSwapContracts(1); ok {
		t.Fatal("did not expect taikoswap contracts for unsupported chain")
	}
}
