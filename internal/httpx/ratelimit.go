package httpx

import (
	"net/http"
	"strconv"
)

// RateLimit is the envelope of standard and weekly rate-limit headers an
// upstream API may return, plus the per-request computing-unit cost some
// providers bill against a weighted quota instead of a flat request count.
type RateLimit struct {
	Limit            int64
	Remaining        int64
	Reset            int64
	WeeklyLimit      int64
	WeeklyRemaining  int64
	WeeklyReset      int64
	ComputingUnit    int64
	Present          bool
}

// ExtractRateLimit reads X-RateLimit-{Limit,Remaining,Reset}, their Weekly
// variants, and X-Computing-Unit out of an HTTP response's headers. Present
// is true only when X-RateLimit-Limit or X-Computing-Unit was returned, so
// callers can tell "not rate limited yet" from "provider doesn't report
// limits"; the other headers alone do not set it.
func ExtractRateLimit(h http.Header) RateLimit {
	rl := RateLimit{
		Limit:           headerInt(h, "X-RateLimit-Limit"),
		Remaining:       headerInt(h, "X-RateLimit-Remaining"),
		Reset:           headerInt(h, "X-RateLimit-Reset"),
		WeeklyLimit:     headerInt(h, "X-RateLimit-Limit-Weekly"),
		WeeklyRemaining: headerInt(h, "X-RateLimit-Remaining-Weekly"),
		WeeklyReset:     headerInt(h, "X-RateLimit-Reset-Weekly"),
		ComputingUnit:   headerInt(h, "X-Computing-Unit"),
	}
	rl.Present = h.Get("X-RateLimit-Limit") != "" || h.Get("X-Computing-Unit") != ""
	return rl
}

func headerInt(h http.Header, key string) int64 {
	v := h.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// MaxPageLimit is the clamp applied to any caller-supplied page size before
// it reaches an upstream API that enforces limit <= 100.
const MaxPageLimit = 100

// ClampLimit bounds limit into (0, MaxPageLimit]. A non-positive input
// falls back to MaxPageLimit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
