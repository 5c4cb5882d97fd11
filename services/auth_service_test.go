package services

import (
	"testing"
	"time"

	"orchidaquiz/models"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")
	user := &models.User{Name: "Host", Email: "host@example.com", Role: "host"}
	user.ID = 7

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "host" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")
	user := &models.User{Role: "host"}
	user.ID = 7

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken(token, "other-secret"); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	claims := &Claims{
		UserID: 7,
		Role:   "host",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseToken(token, "test-secret"); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseTokenRejectsWrongAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 7})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseToken(signed, "test-secret"); err == nil {
		t.Fatal("expected error for unsigned token")
	}
}
