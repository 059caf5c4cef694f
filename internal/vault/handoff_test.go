package vault

import (
	"errors"
	"testing"
	"time"
)

func TestHandoff_RoundTrip(t *testing.T) {
	issuer := NewHandoffIssuer("signing-secret")

	token, err := issuer.Issue("user@example.com", "Tr0ub4dor&3")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("unexpected email: %q", claims.Email)
	}
	if claims.Password != "Tr0ub4dor&3" {
		t.Errorf("unexpected password claim: %q", claims.Password)
	}
}

func TestHandoff_ExpiredTokenRejected(t *testing.T) {
	issuer := NewHandoffIssuer("signing-secret")

	// Issue in the past, verify at the present.
	issuer.now = func() time.Time { return time.Now().Add(-2 * HandoffTTL) }
	token, err := issuer.Issue("user@example.com", "pw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(token); !errors.Is(err, ErrHandoffInvalid) {
		t.Errorf("expected ErrHandoffInvalid for expired token, got %v", err)
	}
}

func TestHandoff_TTLIsThirtySeconds(t *testing.T) {
	if HandoffTTL != 30*time.Second {
		t.Errorf("handoff TTL changed: %v", HandoffTTL)
	}
}

func TestHandoff_WrongSecretRejected(t *testing.T) {
	issuer := NewHandoffIssuer("signing-secret")
	other := NewHandoffIssuer("different-secret")

	token, _ := issuer.Issue("user@example.com", "pw")
	if _, err := other.Verify(token); !errors.Is(err, ErrHandoffInvalid) {
		t.Errorf("expected ErrHandoffInvalid across secrets, got %v", err)
	}
}

func TestHandoff_TamperedTokenRejected(t *testing.T) {
	issuer := NewHandoffIssuer("signing-secret")
	token, _ := issuer.Issue("user@example.com", "pw")

	tampered := token[:len(token)-2] + "xx"
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrHandoffInvalid) {
		t.Errorf("expected ErrHandoffInvalid for tampered token, got %v", err)
	}
}
