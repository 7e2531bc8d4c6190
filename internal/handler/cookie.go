package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/tfinance/tfinance-api/internal/middleware"
)

// UsernameCookie holds the login for the frontend. It is readable from JS.
const UsernameCookie = "username"

// CookiePolicy derives cookie attributes from the environment and request.
type CookiePolicy struct {
	Development bool
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (p CookiePolicy) attributes(r *http.Request) (secure bool, sameSite http.SameSite) {
	secure = isHTTPS(r) || !p.Development
	switch {
	case !p.Development:
		sameSite = http.SameSiteStrictMode
	case secure:
		sameSite = http.SameSiteNoneMode
	default:
		sameSite = http.SameSiteLaxMode
	}
	return secure, sameSite
}

// SetSession writes the token and username cookies.
func (p CookiePolicy) SetSession(w http.ResponseWriter, r *http.Request, token, username string, expires time.Time) {
	secure, sameSite := p.attributes(r)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     UsernameCookie,
		Value:    username,
		Path:     "/",
		Expires:  expires,
		Secure:   secure,
		SameSite: sameSite,
	})
}

// ClearSession expires both cookies with the attributes they were set with.
func (p CookiePolicy) ClearSession(w http.ResponseWriter, r *http.Request) {
	secure, sameSite := p.attributes(r)
	for _, name := range []string{middleware.TokenCookie, UsernameCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: name == middleware.TokenCookie,
			Secure:   secure,
			SameSite: sameSite,
		})
	}
}

// requestBaseURL is the scheme and host the client used.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if isHTTPS(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
