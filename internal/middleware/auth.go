package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/service"
)

// TokenCookie is the name of the HttpOnly cookie carrying the JWT.
const TokenCookie = "token"

// Client-facing texts, matching the API handlers.
const (
	msgTokenMissing    = "Токен отсутствует"
	msgTokenInvalid    = "Токен недействителен"
	msgForbidden       = "Доступ запрещен"
	msgInternalError   = "Внутренняя ошибка сервера"
	msgTooManyRequests = "Слишком много запросов. Попробуйте позже."
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator validates a token and returns its principal.
type Authenticator interface {
	Validate(ctx context.Context, token string) (*model.Principal, error)
}

// Auth returns middleware that requires a valid token from the token cookie
// or, failing that, a Bearer Authorization header.
func Auth(auth Authenticator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}

			principal, err := auth.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrTokenInvalid) || errors.Is(err, service.ErrTokenMissing) {
					writeJSONError(w, http.StatusUnauthorized, msgTokenInvalid)
					return
				}
				log.Error().Err(err).Msg("token validation failed")
				writeJSONError(w, http.StatusInternalServerError, msgInternalError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects principals without the given role with 403.
// It must run after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}
			if p.Role != role {
				writeJSONError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest returns the token cookie value, else the Bearer token.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok && p != nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.MessageResponse{Message: msg})
}
