package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tfinance/tfinance-api/internal/config"
	"github.com/tfinance/tfinance-api/internal/crypto"
	"github.com/tfinance/tfinance-api/internal/handler"
	"github.com/tfinance/tfinance-api/internal/job"
	"github.com/tfinance/tfinance-api/internal/logger"
	"github.com/tfinance/tfinance-api/internal/mail"
	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/redisstore"
	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/server"
	"github.com/tfinance/tfinance-api/internal/service"
	"github.com/tfinance/tfinance-api/internal/storage"
	"github.com/tfinance/tfinance-api/internal/validation"
	"github.com/tfinance/tfinance-api/internal/yookassa"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.Env, cfg.Log.Level)
	repository.SetMigrationLogger(log)

	db, err := repository.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.MigrateUp(ctx, db, cfg.Database.Driver); err != nil {
			return err
		}
	}

	sender, err := mail.NewSender(cfg, log)
	if err != nil {
		return err
	}
	mailer := mail.NewMailer(sender, cfg.App.VerificationTTLHours)

	var (
		rdb        *redis.Client
		sessions   service.SessionStore = repository.NewSessionRepository(db)
		dispatcher job.Dispatcher
		worker     *job.Worker
	)
	if cfg.Redis.Enabled() {
		rdb, err = redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		sessions = redisstore.NewSessionStore(rdb)
		dispatcher = job.NewAsynqDispatcher(cfg.Redis)
		worker = job.NewWorker(cfg.Redis, mailer, log)
		if err := worker.Start(); err != nil {
			return fmt.Errorf("starting job worker: %w", err)
		}
		defer worker.Stop()
	} else {
		log.Warn().Msg("redis not configured, using sql sessions and in-process email delivery")
		dispatcher = job.NewInlineDispatcher(mailer, log)
	}
	defer dispatcher.Close()

	users := repository.NewUserRepository(db)
	issuer := crypto.NewTokenIssuer(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Lifetime())
	authSvc := service.NewAuthService(users, sessions, repository.NewVerificationRepository(db), issuer, dispatcher,
		service.AuthConfig{
			BaseURL:         cfg.App.BaseURL,
			VerificationTTL: time.Duration(cfg.App.VerificationTTLHours) * time.Hour,
		}, log)

	files, err := storage.New(ctx, cfg.Files)
	if err != nil {
		return fmt.Errorf("opening file storage: %w", err)
	}

	handlers := server.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, handler.CookiePolicy{Development: cfg.IsDevelopment()}, cfg.App.FrontendURL),
		Accounts: handler.NewBankAccountHandler(service.NewBankAccountService(repository.NewBankAccountRepository(db), validation.New())),
		Files:    handler.NewFilesHandler(service.NewFilesService(users, files, cfg.Files.AppArchive, log)),
	}
	if cfg.YooKassa.Configured() {
		paymentSvc := service.NewPaymentService(users, repository.NewPaymentRepository(db), yookassa.NewClient(cfg.YooKassa),
			service.PaymentConfig{
				Price:        cfg.Premium.Price,
				Currency:     cfg.Premium.Currency,
				DurationDays: cfg.Premium.DurationDays,
			}, log)
		handlers.Payments = handler.NewPaymentHandler(paymentSvc)
	} else {
		log.Warn().Msg("yookassa credentials missing, payment routes disabled")
	}

	trustedProxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	limits := newRateLimits(cfg.RateLimit, rdb, log)
	defer limits.close()

	janitor, err := service.NewJanitor(authSvc, service.DefaultPurgeSchedule, log)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: server.NewRouter(server.Options{
			Log:            log,
			TrustProxy:     cfg.Server.TrustProxy,
			TrustedProxies: trustedProxies,
			CORSOrigins:    cfg.Server.CORSAllowedOrigins,
			Authenticator:  authSvc,
			Limits:         limits.RateLimits,
		}, handlers),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

type rateLimits struct {
	server.RateLimits
}

func newRateLimits(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger) rateLimits {
	var cmd redis.Cmdable
	if rdb != nil {
		cmd = rdb
	}
	return rateLimits{server.RateLimits{
		Global:   middleware.NewTier("global", cfg.GlobalPerMinute, cmd, log),
		Login:    middleware.NewTier("login", cfg.LoginPerMinute, cmd, log),
		Register: middleware.NewTier("register", cfg.RegisterPerMinute, cmd, log),
	}}
}

func (l rateLimits) close() {
	l.Global.Close()
	l.Login.Close()
	l.Register.Close()
}
