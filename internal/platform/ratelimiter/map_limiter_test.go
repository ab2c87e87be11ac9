package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNilLimiterNeverThrottles(t *testing.T) {
	var l *MapLimiter
	if !l.Allow("getBalance", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
	if err := l.Wait(context.Background(), "getBalance"); err != nil {
		t.Fatalf("nil limiter wait failed: %v", err)
	}
	if New(0, 1, nil) != nil || New(1, 0, nil) != nil {
		t.Fatal("expected nil limiter for invalid args")
	}
}

func TestKeysHaveIndependentBuckets(t *testing.T) {
	l := New(1, 1, nil)
	now := time.Unix(1_700_000_000, 0)
	if !l.Allow("getBalance", now) {
		t.Fatal("first call must be allowed")
	}
	if l.Allow("getBalance", now) {
		t.Fatal("second call in same instant must be throttled")
	}
	if !l.Allow("sendTransaction", now) {
		t.Fatal("other key must have its own bucket")
	}
	if !l.Allow("getBalance", now.Add(time.Second)) {
		t.Fatal("token must refill after one second")
	}
}

func TestOverrideRateApplies(t *testing.T) {
	l := New(100, 1, map[string]float64{"sendTransaction": 0.5, " ": 3})
	now := time.Unix(1_700_000_000, 0)
	if !l.Allow("sendTransaction", now) {
		t.Fatal("first call must be allowed")
	}
	if l.Allow("sendTransaction", now.Add(time.Second)) {
		t.Fatal("override of 0.5 rps must not refill within one second")
	}
	if !l.Allow("sendTransaction", now.Add(2*time.Second)) {
		t.Fatal("override of 0.5 rps must refill after two seconds")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx, "k"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	cancel()
	if err := l.Wait(ctx, "k"); err == nil {
		t.Fatal("expected context error")
	}
}
