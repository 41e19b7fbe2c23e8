package api

import (
	"testing"
	"time"
)

func TestOTPLimiterWindows(t *testing.T) {
	l := NewOTPLimiter(2, 3, time.Hour)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := range 2 {
		if ok, _ := l.Allow("a@b.c", "1.1.1.1"); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	ok, wait := l.Allow("a@b.c", "1.1.1.1")
	if ok {
		t.Fatal("third request for the same email should be refused")
	}
	if wait != time.Hour {
		t.Errorf("expected to wait an hour, got %v", wait)
	}

	// Another address from the same IP still counts against the IP.
	if ok, _ := l.Allow("x@b.c", "1.1.1.1"); !ok {
		t.Error("IP limit not reached yet")
	}
	if ok, _ := l.Allow("y@b.c", "1.1.1.1"); ok {
		t.Error("IP limit should be reached")
	}

	now = now.Add(61 * time.Minute)
	if ok, _ := l.Allow("a@b.c", "1.1.1.1"); !ok {
		t.Error("a new window should allow requests again")
	}
}
