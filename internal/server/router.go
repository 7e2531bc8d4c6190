// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/handler"
	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/model"
)

// Handlers groups the route handlers. Payments may be nil when the payment
// gateway is not configured.
type Handlers struct {
	Auth     *handler.AuthHandler
	Accounts *handler.BankAccountHandler
	Payments *handler.PaymentHandler
	Files    *handler.FilesHandler
}

// RateLimits are the per-IP tiers applied to the API.
type RateLimits struct {
	Global   *middleware.Tier
	Login    *middleware.Tier
	Register *middleware.Tier
}

// Options configures the router. With TrustProxy set, forwarded client
// addresses are honoured only from peers inside TrustedProxies.
type Options struct {
	Log            zerolog.Logger
	TrustProxy     bool
	TrustedProxies []netip.Prefix
	CORSOrigins    []string
	Authenticator  middleware.Authenticator
	Limits         RateLimits
}

// NewRouter builds the chi router with all middleware and routes.
func NewRouter(opts Options, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.TrustedRealIP(opts.TrustedProxies))
	}
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(chimw.RequestSize(handler.MaxBodyBytes))
	if opts.Limits.Global != nil {
		r.Use(middleware.RateLimit(opts.Limits.Global))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := middleware.Auth(opts.Authenticator, opts.Log)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limit(opts.Limits.Register)).Post("/register", h.Auth.HandleRegister)
		r.With(limit(opts.Limits.Login)).Post("/login", h.Auth.HandleLogin)
		r.Post("/logout", h.Auth.HandleLogout)
		r.Get("/validate", h.Auth.HandleValidate)
		r.Get("/verify-email", h.Auth.HandleVerifyEmail)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", h.Auth.HandleMe)
		r.Get("/bank-account", h.Accounts.HandleList)
		r.Post("/bank-account", h.Accounts.HandleCreate)
		r.Delete("/bank-account/{id}", h.Accounts.HandleDelete)
		r.Post("/premium", handler.HandleDeprecatedPremium)
	})

	if h.Payments != nil {
		r.Route("/api/payment", func(r chi.Router) {
			r.Post("/webhook", h.Payments.HandleWebhook)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/create", h.Payments.HandleCreate)
				r.Get("/status/{paymentId}", h.Payments.HandleStatus)
			})
		})
	}

	r.With(requireAuth, middleware.RequireRole(model.RolePremium)).Get("/api/files/app", h.Files.HandleAppArchive)

	return r
}

func limit(t *middleware.Tier) func(http.Handler) http.Handler {
	if t == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(t)
}
