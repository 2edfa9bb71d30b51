package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret-key-for-unit-tests"

func newTestManager(t *testing.T) *TokenManager {
	m, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)
	userID := uuid.New()

	token, err := m.Generate(userID, "validate@test.com", "admin")
	if err != nil {
		t.Fatalf("expected no error generating token, got: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected JWT with 2 dots, got %q", token)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("expected no error validating token, got: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "validate@test.com" {
		t.Errorf("expected email validate@test.com, got %s", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("expected role admin, got %s", claims.Role)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("expected issuer %q, got %s", tokenIssuer, claims.Issuer)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Generate(uuid.New(), "expired@test.com", "customer")
	if err != nil {
		t.Fatal(err)
	}

	m.now = time.Now
	if _, err := m.Validate(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokenWithWrongSecretRejected(t *testing.T) {
	other, err := NewTokenManager("another-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := other.Generate(uuid.New(), "x@test.com", "customer")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestManager(t).Validate(token); err == nil {
		t.Error("expected token signed with a different secret to be rejected")
	}
}

func TestNoneAlgorithmRejected(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    tokenIssuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestManager(t).Validate(token); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	if _, err := newTestManager(t).Validate("not.a.token"); err == nil {
		t.Error("expected malformed token to be rejected")
	}
}
