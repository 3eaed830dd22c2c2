package ratelimit

import "testing"

func TestAllowUnconfiguredKeyRejected(t *testing.T) {
	l := New()
	if l.Allow("nope") {
		t.Fatalf("expected unconfigured key to be rejected")
	}
}

func TestAllowWithinCapacity(t *testing.T) {
	l := New()
	l.Configure("ci", 2)
	if !l.Allow("ci") {
		t.Fatalf("expected first request to be allowed")
	}
	if !l.Allow("ci") {
		t.Fatalf("expected second request to be allowed")
	}
	if l.Allow("ci") {
		t.Fatalf("expected third request to exceed burst capacity")
	}
}
