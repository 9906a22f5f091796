package execution

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want RetryClass
	}{
		{"execution reverted: insufficient allowance", ClassRevert},
		{"nonce too low", ClassFatal},
		{"invalid sender", ClassFatal},
		{"connection refused", ClassTransient},
		{"dial tcp: i/o timeout", ClassTransient},
	}
	for _, c := range cases {
		if got := ClassifyError(errors.New(c.msg)); got != c.want {
			t.Errorf("ClassifyError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestWithRetryStopsOnFatal(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("nonce too low")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("fatal errors must not retry, got %d attempts", attempts)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != MaxRetries+1 {
		t.Fatalf("attempts = %d, want %d", attempts, MaxRetries+1)
	}
	if time.Since(start) < 2*time.Second {
		t.Fatal("expected at least 2 x 1s transient backoff between attempts")
	}
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}
