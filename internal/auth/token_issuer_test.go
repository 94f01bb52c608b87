package auth

import (
	"testing"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		TokenTTL:      30 * time.Minute,
		Clock: func() time.Time {
			return testClockNow
		},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerRoundTripsThroughValidator(t *testing.T) {
	issuer := newTestIssuer(t)
	validator := newTestValidator(t)

	token, expiresAt, err := issuer.IssueSession(models.User{ID: "user-9", Name: "Grace", Grade: models.GradeV5})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(testClockNow.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.Subject != "user-9" || claims.UserName != "Grace" || claims.Grade != models.GradeV5 {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuerGuestSessionsLastADay(t *testing.T) {
	issuer := newTestIssuer(t)

	_, expiresAt, err := issuer.IssueSession(models.User{ID: "guest-1", Grade: models.GradeGuest, IsGuest: true})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(testClockNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected guest expiry %s", expiresAt)
	}
}

func TestTokenIssuerRejectsMissingInputs(t *testing.T) {
	if _, err := NewTokenIssuer(TokenIssuerConfig{Issuer: testSessionIssuer}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("s")}); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
	if _, _, err := newTestIssuer(t).IssueSession(models.User{}); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}
