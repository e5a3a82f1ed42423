package auth

import (
	"testing"
	"time"

	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "castwell",
	ExpirationMinutes: 30,
}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	accountID := uuid.New()

	token, err := MintAccessToken(testJWT, now, AccessTokenPayload{
		AccountID: accountID,
		Email:     "buyer@example.com",
		Role:      enums.AccountRoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.AccountID != accountID {
		t.Fatalf("expected account_id %s, got %s", accountID, claims.AccountID)
	}
	if claims.Role != enums.AccountRoleBuyer || claims.IsAdmin() {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("expected issuer %s, got %s", testJWT.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	now := time.Now()
	token, err := MintAccessToken(testJWT, now, AccessTokenPayload{AccountID: uuid.New(), Role: enums.AccountRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := testJWT
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature error")
	}

	wrongIssuer := testJWT
	wrongIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(wrongIssuer, token); err == nil {
		t.Fatal("expected issuer error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), AccessTokenPayload{AccountID: uuid.New(), Role: enums.AccountRoleBuyer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected expired token error")
	}
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessTokenClaims{
		AccountID:        uuid.New(),
		Role:             enums.AccountRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testJWT.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, time.Now(), AccessTokenPayload{AccountID: uuid.New(), Role: enums.AccountRoleBuyer}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{Role: enums.AccountRoleBuyer}); err == nil {
		t.Fatal("expected missing account error")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{AccountID: uuid.New(), Role: "root"}); err == nil {
		t.Fatal("expected invalid role error")
	}
}
