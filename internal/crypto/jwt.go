package crypto

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the JWT claims issued at login. The registered ID (jti) is
// the server-side session id.
type Claims struct {
	jwt.RegisteredClaims
	Login string `json:"login"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserID returns the numeric user id carried in the subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenSubject is the identity a token is issued for.
type TokenSubject struct {
	UserID    int64
	SessionID string
	Login     string
	Email     string
	Role      string
}

// TokenIssuer signs and validates HS256 tokens for one issuer/audience pair.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenIssuer(key, issuer, audience string, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Lifetime is the validity of issued tokens.
func (t *TokenIssuer) Lifetime() time.Duration {
	return t.lifetime
}

// Generate creates a signed token for the subject and returns its expiry.
func (t *TokenIssuer) Generate(sub TokenSubject) (string, time.Time, error) {
	now := t.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(t.lifetime)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			ID:        sub.SessionID,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login: sub.Login,
		Email: sub.Email,
		Role:  sub.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses a token and checks signature, issuer, audience and
// lifetime with no clock skew allowance.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	return t.parse(tokenString, jwt.WithExpirationRequired())
}

// ParseIgnoringExpiry checks everything Validate does except the lifetime.
// Logout uses it so an expired cookie can still end its session.
func (t *TokenIssuer) ParseIgnoringExpiry(tokenString string) (*Claims, error) {
	return t.parse(tokenString, jwt.WithoutClaimsValidation())
}

func (t *TokenIssuer) parse(tokenString string, extra ...jwt.ParserOption) (*Claims, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithTimeFunc(t.now),
	}, extra...)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.key, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// WithoutClaimsValidation also skips iss/aud, so check them here.
	if claims.Issuer != t.issuer || !audienceContains(claims.Audience, t.audience) {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
