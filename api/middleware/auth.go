package middleware

import (
	"net/http"
	"strings"

	"github.com/castwell/launch-backend/api/responses"
	pkgAuth "github.com/castwell/launch-backend/pkg/auth"
	"github.com/castwell/launch-backend/pkg/config"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, true)
}

// OptionalAuth attaches the caller when a bearer token is present and lets
// anonymous requests through. A token that is present but invalid is rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, false)
}

func authenticate(cfg config.JWTConfig, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithAccount(r.Context(), claims.AccountID.String(), claims.Email, string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.AccountID.String())
				ctx = logg.WithRole(ctx, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
