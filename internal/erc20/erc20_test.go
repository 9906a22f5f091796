package erc20

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
)

func TestRequiresApprovalResetUSDTMainnet(t *testing.T) {
	if !RequiresApprovalReset(1, "0xdAC17F958D2ee523a2206206994597C13D831ec7") {
		t.Fatal("expected USDT mainnet to require an approval reset")
	}
	if RequiresApprovalReset(1, "0x0000000000000000000000000000000000dEaD") {
		t.Fatal("unexpected reset requirement for unrelated token")
	}
	if RequiresApprovalReset(137, "0xdAC17F958D2ee523a2206206994597C13D831ec7") {
		t.Fatal("reset table is keyed per chain id, not token alone")
	}
}

type fakeBroadcaster struct {
	calls []calldata.Call
	hash  common.Hash
}

func (f *fakeBroadcaster) SendAndWait(_ context.Context, call calldata.Call) (common.Hash, error) {
	f.calls = append(f.calls, call)
	return f.hash, nil
}

func TestApproveCallEncodesAmount(t *testing.T) {
	token := common.HexToAddress("0xaa")
	spender := common.HexToAddress("0xbb")
	call, err := ApproveCall(token, spender, MaxUint256)
	if err != nil {
		t.Fatalf("approve call: %v", err)
	}
	if call.To != token {
		t.Fatalf("target = %v, want token address", call.To)
	}
	if len(call.Data) < 4+32+32 {
		t.Fatal("expected selector + two 32-byte args")
	}
}

func TestMaxUint256(t *testing.T) {
	want := new(big.Int)
	want.SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	if MaxUint256.Cmp(want) != 0 {
		t.Fatalf("MaxUint256 = %v, want %v", MaxUint256, want)
	}
}
