package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tfinance/tfinance-api/internal/crypto"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/validation"
)

const testPassword = "Secr3t!pass"

type authDeps struct {
	users      *fakeUsers
	sessions   *fakeSessions
	tokens     *fakeTokens
	dispatcher *fakeDispatcher
}

func newTestAuthService(baseURL string) (*AuthService, authDeps) {
	users := newFakeUsers()
	deps := authDeps{
		users:      users,
		sessions:   newFakeSessions(),
		tokens:     newFakeTokens(users),
		dispatcher: &fakeDispatcher{},
	}
	issuer := crypto.NewTokenIssuer("test-secret-0123456789abcdef-0123456789", "tfinance", "tfinance-web", time.Hour)
	svc := NewAuthService(deps.users, deps.sessions, deps.tokens, issuer, deps.dispatcher,
		AuthConfig{BaseURL: baseURL, VerificationTTL: 24 * time.Hour}, zerolog.Nop())
	return svc, deps
}

func addUser(t *testing.T, users *fakeUsers, login string, confirmed bool) *model.User {
	t.Helper()
	hash, err := crypto.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}
	return users.add(model.User{
		Email:            login + "@example.com",
		Login:            login,
		PasswordHash:     hash,
		IsEmailConfirmed: confirmed,
	})
}

func fieldOf(err error) string {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func TestRegister_ValidationOrder(t *testing.T) {
	svc, _ := newTestAuthService("https://api.example.com")

	tests := []struct {
		name  string
		req   model.RegisterRequest
		field string
	}{
		{"everything empty", model.RegisterRequest{}, "email"},
		{"bad email and login", model.RegisterRequest{Email: "nope", Login: "x", Password: "weak"}, "email"},
		{"bad login", model.RegisterRequest{Email: "ivan@example.com", Login: "x", Password: "weak"}, "login"},
		{"weak password", model.RegisterRequest{Email: "ivan@example.com", Login: "ivan", Password: "weak"}, "password"},
		{"padded email", model.RegisterRequest{Email: " ivan@example.com", Login: "ivan", Password: testPassword}, "email"},
		{"padded login", model.RegisterRequest{Email: "ivan@example.com", Login: "ivan ", Password: testPassword}, "login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(context.Background(), tt.req, "")
			if got := fieldOf(err); got != tt.field {
				t.Errorf("Register() error field = %q (%v), want %q", got, err, tt.field)
			}
		})
	}
}

func TestRegister_CreatesUserAndSendsVerification(t *testing.T) {
	svc, deps := newTestAuthService("https://api.example.com/")

	err := svc.Register(context.Background(), model.RegisterRequest{
		Email:    "ivan@example.com",
		Login:    "ivan",
		Password: testPassword,
	}, "http://ignored")
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	user, err := deps.users.GetByLoginOrEmail(context.Background(), "ivan")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.Email != "ivan@example.com" || user.IsEmailConfirmed || user.IsPremium {
		t.Errorf("stored user = %+v", user)
	}
	if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Errorf("password hash = %q, want argon2id", user.PasswordHash)
	}

	tokens := deps.tokens.all()
	if len(tokens) != 1 {
		t.Fatalf("expected 1 verification token, got %d", len(tokens))
	}
	if got := tokens[0].ExpiresAt.Sub(tokens[0].CreatedAt); got != 24*time.Hour {
		t.Errorf("token lifetime = %v, want 24h", got)
	}

	emails := deps.dispatcher.emails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	want := "https://api.example.com/api/auth/verify-email?token=" + tokens[0].Token
	if emails[0].Link != want {
		t.Errorf("link = %q, want %q", emails[0].Link, want)
	}
	if emails[0].To != "ivan@example.com" || emails[0].Username != "ivan" {
		t.Errorf("email = %+v", emails[0])
	}
}

func TestRegister_FallsBackToRequestOrigin(t *testing.T) {
	svc, deps := newTestAuthService("")

	if err := svc.Register(context.Background(), model.RegisterRequest{
		Email: "ivan@example.com", Login: "ivan", Password: testPassword,
	}, "http://localhost:8080"); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	emails := deps.dispatcher.emails()
	if len(emails) != 1 || !strings.HasPrefix(emails[0].Link, "http://localhost:8080/api/auth/verify-email?token=") {
		t.Errorf("emails = %+v", emails)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, deps := newTestAuthService("")
	addUser(t, deps.users, "ivan", true)

	err := svc.Register(context.Background(), model.RegisterRequest{
		Email: "other@example.com", Login: "ivan", Password: testPassword,
	}, "")
	if err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestRegister_DispatchFailureIsNotReturned(t *testing.T) {
	svc, deps := newTestAuthService("")
	deps.dispatcher.err = errors.New("queue down")

	err := svc.Register(context.Background(), model.RegisterRequest{
		Email: "ivan@example.com", Login: "ivan", Password: testPassword,
	}, "")
	if err != nil {
		t.Errorf("Register() error = %v, want nil", err)
	}
}

func TestLogin_BlankFields(t *testing.T) {
	svc, _ := newTestAuthService("")

	_, err := svc.Login(context.Background(), model.LoginRequest{Password: "x"}, model.ClientInfo{})
	if fieldOf(err) != "loginOrEmail" {
		t.Errorf("expected loginOrEmail validation error, got %v", err)
	}
	_, err = svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan"}, model.ClientInfo{})
	if fieldOf(err) != "password" {
		t.Errorf("expected password validation error, got %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _ := newTestAuthService("")

	_, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ghost", Password: testPassword}, model.ClientInfo{})
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_WrongPasswordBeforeConfirmationCheck(t *testing.T) {
	svc, deps := newTestAuthService("")
	addUser(t, deps.users, "ivan", false)

	_, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: "Wr0ng!pass"}, model.ClientInfo{})
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	_, err = svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: testPassword}, model.ClientInfo{})
	if err != ErrEmailNotConfirmed {
		t.Errorf("expected ErrEmailNotConfirmed, got %v", err)
	}
	if deps.sessions.count() != 0 {
		t.Errorf("expected no sessions, got %d", deps.sessions.count())
	}
}

func TestLogin_ByEmailCreatesSession(t *testing.T) {
	svc, deps := newTestAuthService("")
	user := addUser(t, deps.users, "ivan", true)

	res, err := svc.Login(context.Background(),
		model.LoginRequest{LoginOrEmail: " ivan@example.com ", Password: testPassword},
		model.ClientInfo{UserAgent: "test-agent", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}
	if res.Token == "" || res.Login != "ivan" {
		t.Errorf("Login() result = %+v", res)
	}
	if deps.sessions.count() != 1 {
		t.Fatalf("expected 1 session, got %d", deps.sessions.count())
	}

	p, err := svc.Validate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if p.UserID != user.ID || p.Login != "ivan" || p.Role != model.RoleUser {
		t.Errorf("principal = %+v", p)
	}
	s, err := deps.sessions.Get(context.Background(), p.SessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if s.UserAgent != "test-agent" || s.IP != "10.0.0.1" {
		t.Errorf("session = %+v", s)
	}
}

func TestLogin_PremiumRole(t *testing.T) {
	svc, deps := newTestAuthService("")
	user := addUser(t, deps.users, "ivan", true)
	now := time.Now().UTC()
	if err := deps.users.grant(user.ID, now.Add(-time.Hour), now.Add(24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: testPassword}, model.ClientInfo{})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}
	p, err := svc.Validate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if p.Role != model.RolePremium {
		t.Errorf("role = %q, want %q", p.Role, model.RolePremium)
	}
}

func TestLogin_RehashesLegacyHash(t *testing.T) {
	svc, deps := newTestAuthService("")
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user := deps.users.add(model.User{
		Email: "ivan@example.com", Login: "ivan", PasswordHash: string(legacy), IsEmailConfirmed: true,
	})

	if _, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: testPassword}, model.ClientInfo{}); err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	stored, _ := deps.users.GetByID(context.Background(), user.ID)
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Errorf("hash not upgraded: %q", stored.PasswordHash)
	}
}

func TestValidate_MissingAndGarbage(t *testing.T) {
	svc, _ := newTestAuthService("")

	if _, err := svc.Validate(context.Background(), ""); err != ErrTokenMissing {
		t.Errorf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "not-a-jwt"); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidate_ExpiredSession(t *testing.T) {
	svc, deps := newTestAuthService("")
	addUser(t, deps.users, "ivan", true)

	res, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: testPassword}, model.ClientInfo{})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, err := svc.Validate(context.Background(), res.Token); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	svc, deps := newTestAuthService("")
	addUser(t, deps.users, "ivan", true)

	res, err := svc.Login(context.Background(), model.LoginRequest{LoginOrEmail: "ivan", Password: testPassword}, model.ClientInfo{})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	svc.Logout(context.Background(), res.Token)
	if deps.sessions.count() != 0 {
		t.Errorf("expected session to be deleted, %d left", deps.sessions.count())
	}
	if _, err := svc.Validate(context.Background(), res.Token); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid after logout, got %v", err)
	}

	// Garbage and empty tokens are ignored.
	svc.Logout(context.Background(), "")
	svc.Logout(context.Background(), "garbage")
}

func TestVerifyEmail(t *testing.T) {
	svc, deps := newTestAuthService("")
	if err := svc.Register(context.Background(), model.RegisterRequest{
		Email: "ivan@example.com", Login: "ivan", Password: testPassword,
	}, "http://localhost"); err != nil {
		t.Fatal(err)
	}
	token := deps.tokens.all()[0].Token

	if err := svc.VerifyEmail(context.Background(), "", ""); err != ErrTokenMissing {
		t.Errorf("expected ErrTokenMissing, got %v", err)
	}
	if err := svc.VerifyEmail(context.Background(), "unknown", ""); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}

	if err := svc.VerifyEmail(context.Background(), token, ""); err != nil {
		t.Fatalf("VerifyEmail() unexpected error: %v", err)
	}
	user, _ := deps.users.GetByLoginOrEmail(context.Background(), "ivan")
	if !user.IsEmailConfirmed {
		t.Error("email not confirmed")
	}

	if err := svc.VerifyEmail(context.Background(), token, ""); err != ErrTokenInvalid {
		t.Errorf("reused token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEmail_ExpiredTokenSendsNewOne(t *testing.T) {
	svc, deps := newTestAuthService("https://api.example.com")
	if err := svc.Register(context.Background(), model.RegisterRequest{
		Email: "ivan@example.com", Login: "ivan", Password: testPassword,
	}, ""); err != nil {
		t.Fatal(err)
	}
	token := deps.tokens.all()[0].Token
	deps.tokens.expire(token, time.Now().UTC().Add(-time.Minute))

	if err := svc.VerifyEmail(context.Background(), token, ""); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if n := len(deps.tokens.all()); n != 2 {
		t.Errorf("expected a fresh token, have %d", n)
	}
	if n := len(deps.dispatcher.emails()); n != 2 {
		t.Errorf("expected a second email, have %d", n)
	}
	user, _ := deps.users.GetByLoginOrEmail(context.Background(), "ivan")
	if user.IsEmailConfirmed {
		t.Error("expired token must not confirm the email")
	}
}

func TestCurrentUser(t *testing.T) {
	svc, deps := newTestAuthService("")
	user := addUser(t, deps.users, "ivan", true)

	resp, err := svc.CurrentUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CurrentUser() unexpected error: %v", err)
	}
	if resp.Login != "ivan" || resp.IsPremium || resp.PremiumExpiresAt != nil {
		t.Errorf("CurrentUser() = %+v", resp)
	}
	if _, err := svc.CurrentUser(context.Background(), 999); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, deps := newTestAuthService("")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deps.sessions.Create(context.Background(), &model.Session{ID: "old", UserID: 1, ExpiresAt: now.Add(-time.Minute)})
	deps.sessions.Create(context.Background(), &model.Session{ID: "live", UserID: 1, ExpiresAt: now.Add(time.Minute)})

	if err := svc.PurgeExpired(context.Background(), now); err != nil {
		t.Fatalf("PurgeExpired() unexpected error: %v", err)
	}
	if _, err := deps.sessions.Get(context.Background(), "live"); err != nil {
		t.Errorf("live session purged: %v", err)
	}
	if deps.sessions.count() != 1 {
		t.Errorf("expected 1 session left, got %d", deps.sessions.count())
	}
	if want := now.Add(-verificationPurgeGrace); !deps.tokens.purged.Equal(want) {
		t.Errorf("token purge cutoff = %v, want %v", deps.tokens.purged, want)
	}
}
