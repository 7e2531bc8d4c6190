package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/crypto"
	"github.com/tfinance/tfinance-api/internal/job"
	"github.com/tfinance/tfinance-api/internal/logger"
	"github.com/tfinance/tfinance-api/internal/metrics"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/validation"
)

var (
	ErrUserExists         = errors.New("a user with this email or login already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrEmailNotConfirmed  = errors.New("email is not confirmed, check your inbox")
	ErrTokenMissing       = errors.New("token is missing")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
	ErrUserNotFound       = errors.New("user not found")
)

// RegisteredMessage is returned after a successful registration.
const RegisteredMessage = "Пользователь успешно зарегистрирован. Пожалуйста, проверьте вашу почту для подтверждения email адреса."

// Tokens stay in the table for a week after expiring so that old links
// still report token_expired rather than token_invalid.
const verificationPurgeGrace = 7 * 24 * time.Hour

// AuthConfig holds the auth settings that come from configuration.
type AuthConfig struct {
	// BaseURL prefixes verification links. Empty means use the request's origin.
	BaseURL         string
	VerificationTTL time.Duration
}

// AuthService handles registration, login, sessions and email verification.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	tokens     VerificationStore
	issuer     *crypto.TokenIssuer
	dispatcher job.Dispatcher
	cfg        AuthConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users UserStore,
	sessions SessionStore,
	tokens VerificationStore,
	issuer *crypto.TokenIssuer,
	dispatcher job.Dispatcher,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		issuer:     issuer,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unconfirmed account and sends the verification email.
// requestBaseURL is the scheme and host the request arrived on.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, requestBaseURL string) error {
	if err := validation.Email(req.Email); err != nil {
		return err
	}
	if err := validation.Login(req.Login); err != nil {
		return err
	}
	if err := validation.Password(req.Password); err != nil {
		return err
	}

	email := strings.TrimSpace(req.Email)
	login := strings.TrimSpace(req.Login)

	exists, err := s.users.ExistsByEmailOrLogin(ctx, email, login)
	if err != nil {
		return err
	}
	if exists {
		metrics.AuthEvents.WithLabelValues("register", "duplicate").Inc()
		return ErrUserExists
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &model.User{
		Email:        email,
		Login:        login,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			metrics.AuthEvents.WithLabelValues("register", "duplicate").Inc()
			return ErrUserExists
		}
		return err
	}

	metrics.AuthEvents.WithLabelValues("register", "success").Inc()
	s.log.Info().Int64("user_id", user.ID).Str("login", user.Login).Msg("user registered")

	s.sendVerification(ctx, user, requestBaseURL)
	return nil
}

// Login checks the credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, client model.ClientInfo) (model.LoginResult, error) {
	if strings.TrimSpace(req.LoginOrEmail) == "" {
		return model.LoginResult{}, &validation.Error{Field: "loginOrEmail", Message: "Логин или Email обязателен для заполнения"}
	}
	if strings.TrimSpace(req.Password) == "" {
		return model.LoginResult{}, &validation.Error{Field: "password", Message: "Пароль обязателен для заполнения"}
	}

	user, err := s.users.GetByLoginOrEmail(ctx, strings.TrimSpace(req.LoginOrEmail))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			crypto.VerifyDummy(req.Password)
			metrics.AuthEvents.WithLabelValues("login", "invalid_credentials").Inc()
			return model.LoginResult{}, ErrInvalidCredentials
		}
		return model.LoginResult{}, err
	}

	ok, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("stored password hash is unreadable")
		ok = false
	}
	if !ok {
		metrics.AuthEvents.WithLabelValues("login", "invalid_credentials").Inc()
		return model.LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsEmailConfirmed {
		metrics.AuthEvents.WithLabelValues("login", "email_not_confirmed").Inc()
		return model.LoginResult{}, ErrEmailNotConfirmed
	}

	if crypto.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, req.Password)
	}

	now := s.now()
	session := &model.Session{
		ID:        crypto.NewSessionID(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.issuer.Lifetime()),
		UserAgent: client.UserAgent,
		IP:        client.IP,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return model.LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	token, expiresAt, err := s.issuer.Generate(crypto.TokenSubject{
		UserID:    user.ID,
		SessionID: session.ID,
		Login:     user.Login,
		Email:     user.Email,
		Role:      user.Role(now),
	})
	if err != nil {
		return model.LoginResult{}, err
	}

	metrics.AuthEvents.WithLabelValues("login", "success").Inc()
	s.log.Info().Int64("user_id", user.ID).Str("session_id", session.ID).Str("ip", client.IP).Msg("user logged in")

	return model.LoginResult{Token: token, ExpiresAt: expiresAt, Login: user.Login}, nil
}

// Logout ends the session behind token. Unparseable tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.issuer.ParseIgnoringExpiry(token)
	if err != nil || claims.ID == "" {
		return
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		s.log.Error().Err(err).Str("session_id", claims.ID).Msg("failed to delete session")
		return
	}
	metrics.AuthEvents.WithLabelValues("logout", "success").Inc()
}

// Validate returns the principal for a signed token backed by a live session.
func (s *AuthService) Validate(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	userID, err := claims.UserID()
	if err != nil || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if session.UserID != userID || session.Expired(s.now()) {
		return nil, ErrTokenInvalid
	}

	return &model.Principal{
		UserID:    userID,
		SessionID: session.ID,
		Login:     claims.Login,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}

// VerifyEmail confirms the address behind a verification token. An expired
// token triggers a fresh email and ErrTokenExpired.
func (s *AuthService) VerifyEmail(ctx context.Context, token, requestBaseURL string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenMissing
	}

	t, err := s.tokens.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			metrics.AuthEvents.WithLabelValues("verify_email", "invalid").Inc()
			return ErrTokenInvalid
		}
		return err
	}

	user, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if t.Expired(s.now()) {
		s.log.Info().Int64("user_id", user.ID).Str("token", logger.TokenPrefix(t.Token)).Msg("verification token expired, sending a new one")
		s.sendVerification(ctx, user, requestBaseURL)
		metrics.AuthEvents.WithLabelValues("verify_email", "expired").Inc()
		return ErrTokenExpired
	}

	if err := s.tokens.Confirm(ctx, t); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return ErrUserNotFound
		case errors.Is(err, repository.ErrTokenNotFound):
			return ErrTokenInvalid
		}
		return err
	}

	metrics.AuthEvents.WithLabelValues("verify_email", "success").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("email confirmed")
	return nil
}

// CurrentUser returns the account for id.
func (s *AuthService) CurrentUser(ctx context.Context, id int64) (model.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, ErrUserNotFound
		}
		return model.UserResponse{}, err
	}
	resp := model.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Login:     user.Login,
		IsPremium: user.PremiumActive(s.now()),
		CreatedAt: user.CreatedAt,
	}
	if resp.IsPremium {
		resp.PremiumExpiresAt = user.PremiumExpiresAt
	}
	return resp, nil
}

// PurgeExpired removes expired sessions and stale verification tokens.
func (s *AuthService) PurgeExpired(ctx context.Context, now time.Time) error {
	sessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	tokens, err := s.tokens.DeleteExpired(ctx, now.Add(-verificationPurgeGrace))
	if err != nil {
		return fmt.Errorf("purge verification tokens: %w", err)
	}
	s.log.Debug().Int64("sessions", sessions).Int64("tokens", tokens).Msg("expired records purged")
	return nil
}

// sendVerification issues a token and hands the email to the dispatcher.
// Failures are logged only: registration has already succeeded.
func (s *AuthService) sendVerification(ctx context.Context, user *model.User, requestBaseURL string) {
	now := s.now()
	t := &model.EmailVerificationToken{
		UserID:    user.ID,
		Token:     crypto.NewOpaqueToken(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.VerificationTTL),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create verification token")
		return
	}

	link := s.verificationLink(t.Token, requestBaseURL)
	err := s.dispatcher.EnqueueVerificationEmail(ctx, job.VerificationEmail{
		To:       user.Email,
		Link:     link,
		Username: user.Login,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to enqueue verification email")
		return
	}
	s.log.Info().Int64("user_id", user.ID).Str("token", logger.TokenPrefix(t.Token)).Msg("verification email queued")
}

func (s *AuthService) verificationLink(token, requestBaseURL string) string {
	base := s.cfg.BaseURL
	if base == "" {
		base = requestBaseURL
	}
	return strings.TrimRight(base, "/") + "/api/auth/verify-email?token=" + url.QueryEscape(token)
}

func (s *AuthService) rehash(ctx context.Context, userID int64, password string) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to rehash password")
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to store rehashed password")
		return
	}
	s.log.Info().Int64("user_id", userID).Msg("password hash upgraded")
}
