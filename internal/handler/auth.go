package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/service"
)

// AuthService is the auth behaviour the handlers need.
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest, requestBaseURL string) error
	Login(ctx context.Context, req model.LoginRequest, client model.ClientInfo) (model.LoginResult, error)
	Logout(ctx context.Context, token string)
	Validate(ctx context.Context, token string) (*model.Principal, error)
	VerifyEmail(ctx context.Context, token, requestBaseURL string) error
	CurrentUser(ctx context.Context, id int64) (model.UserResponse, error)
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service     AuthService
	cookies     CookiePolicy
	frontendURL string
}

// NewAuthHandler creates a new AuthHandler. Email verification redirects to
// frontendURL.
func NewAuthHandler(svc AuthService, cookies CookiePolicy, frontendURL string) *AuthHandler {
	return &AuthHandler{
		service:     svc,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// HandleRegister handles POST /api/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Register(r.Context(), req, requestBaseURL(r)); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, errorResponse(service.RegisteredMessage))
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req, model.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        middleware.ClientIP(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.SetSession(w, r, res.Token, res.Login, res.ExpiresAt)
	writeJSON(w, http.StatusOK, model.AuthResponse{Message: msgLoginSuccess, Username: res.Login})
}

// HandleLogout handles POST /api/auth/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), middleware.TokenFromRequest(r))
	h.cookies.ClearSession(w, r)
	writeJSON(w, http.StatusOK, errorResponse(msgLoggedOut))
}

// HandleValidate handles GET /api/auth/validate requests. Only the token
// cookie is consulted.
func (h *AuthHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(middleware.TokenCookie); err == nil {
		token = c.Value
	}

	if _, err := h.service.Validate(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, errorResponse(msgTokenValid))
}

// HandleVerifyEmail handles GET /api/auth/verify-email requests by
// redirecting to the frontend login page with the outcome.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"), requestBaseURL(r))

	query := url.Values{}
	switch {
	case err == nil:
		query.Set("verified", "true")
	case errors.Is(err, service.ErrTokenMissing):
		query.Set("error", "token_missing")
	case errors.Is(err, service.ErrTokenInvalid):
		query.Set("error", "token_invalid")
	case errors.Is(err, service.ErrTokenExpired):
		query.Set("error", "token_expired")
	case errors.Is(err, service.ErrUserNotFound):
		query.Set("error", "user_not_found")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("email verification failed")
		query.Set("error", "server_error")
	}

	http.Redirect(w, r, h.frontendURL+"/login?"+query.Encode(), http.StatusFound)
}

// HandleMe handles GET /api/user/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	resp, err := h.service.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
