package httpx

import (
	"net/http"
	"testing"
)

func TestExtractRateLimit(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "100")
	h.Set("X-RateLimit-Remaining", "42")
	h.Set("X-RateLimit-Reset", "1700000000")
	h.Set("X-Computing-Unit", "3")

	rl := ExtractRateLimit(h)
	if !rl.Present {
		t.Fatal("expected Present=true when rate-limit headers exist")
	}
	if rl.Limit != 100 || rl.Remaining != 42 || rl.Reset != 1700000000 || rl.ComputingUnit != 3 {
		t.Fatalf("unexpected RateLimit: %+v", rl)
	}
}

func TestExtractRateLimitAbsent(t *testing.T) {
	rl := ExtractRateLimit(http.Header{})
	if rl.Present {
		t.Fatal("expected Present=false with no rate-limit headers")
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, MaxPageLimit},
		{-5, MaxPageLimit},
		{50, 50},
		{100, 100},
		{101, MaxPageLimit},
	}
	for _, c := range cases {
		if got := ClampLimit(c.in); got != c.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
