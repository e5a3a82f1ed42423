package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/auth"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "castwell", ExpirationMinutes: 60}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	token := mintTestToken(t, time.Now().Add(-2*time.Hour), enums.AccountRoleBuyer)
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	token := mintTestToken(t, time.Now(), enums.AccountRoleBuyer)

	var captured struct {
		account string
		email   string
		role    string
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.account = AccountIDFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if _, err := uuid.Parse(captured.account); err != nil {
		t.Fatalf("expected account id in context, got %q", captured.account)
	}
	if captured.email != "buyer@example.com" {
		t.Fatalf("unexpected email %q", captured.email)
	}
	if captured.role != string(enums.AccountRoleBuyer) {
		t.Fatalf("expected role buyer got %s", captured.role)
	}
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	var account string
	handler := OptionalAuth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if account != "" {
		t.Fatalf("expected anonymous caller, got %q", account)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", resp.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		role string
		want int
	}{
		{string(enums.AccountRoleAdmin), http.StatusNoContent},
		{string(enums.AccountRoleBuyer), http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/fire-sale", nil)
		req = req.WithContext(WithAccount(req.Context(), uuid.NewString(), "op@example.com", tc.role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %q: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, now time.Time, role enums.AccountRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, now, auth.AccessTokenPayload{
		AccountID: uuid.New(),
		Email:     "buyer@example.com",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
