package multicall

import (
	"math/big"
	"testing"
)

func TestBigIntFromSlotRejectsFailedOrShort(t *testing.T) {
	if _, ok := BigIntFromSlot(Result{Err: errTest}); ok {
		t.Fatal("expected false for failed result")
	}
	if _, ok := BigIntFromSlot(Result{Bytes: []byte{1, 2, 3}}); ok {
		t.Fatal("expected false for short payload")
	}
	padded := make([]byte, 32)
	padded[31] = 42
	v, ok := BigIntFromSlot(Result{Bytes: padded})
	if !ok || v.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("got %v, %v; want 42, true", v, ok)
	}
}

func TestResultOk(t *testing.T) {
	if !(Result{Bytes: []byte{1}}).Ok() {
		t.Fatal("expected Ok for result with no error")
	}
	if (Result{Err: errTest}).Ok() {
		t.Fatal("expected !Ok for errored result")
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
