package chain

import (
	"context"
	"testing"
)

func TestScopedClientFailsWithoutRegisteredURL(t *testing.T) {
	g := NewGateway()
	if _, err := g.ScopedClient(context.Background(), 999999); err == nil {
		t.Fatal("expected config error for unregistered chain id")
	}
}

func TestBlockTagDefaults(t *testing.T) {
	if Latest.blockNumber() != nil {
		t.Fatal("Latest must map to a nil block number pointer")
	}
	if Pending.blockNumber().Sign() >= 0 {
		t.Fatal("Pending must map to a negative sentinel block number")
	}
}
