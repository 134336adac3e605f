package authflow

import (
	"errors"
	"testing"
	"time"
)

func TestCSRFRoundTrip(t *testing.T) {
	now := time.Now()
	tok := GenerateCSRF("k", "sess-1", now)
	if err := VerifyCSRF("k", "sess-1", tok, time.Hour, now.Add(time.Minute)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyCSRF("k", "sess-2", tok, time.Hour, now); !errors.Is(err, ErrCSRFSignature) {
		t.Fatalf("token must be bound to its session, got %v", err)
	}
	if err := VerifyCSRF("other", "sess-1", tok, time.Hour, now); !errors.Is(err, ErrCSRFSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if err := VerifyCSRF("k", "sess-1", tok, time.Hour, now.Add(2*time.Hour)); !errors.Is(err, ErrCSRFExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if err := VerifyCSRF("k", "sess-1", "%%%", time.Hour, now); !errors.Is(err, ErrCSRFMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}
