package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfinance/tfinance-api/internal/metrics"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMemoryLimiterBurst(t *testing.T) {
	l := NewMemoryLimiter(3)
	defer l.Close()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, _ := l.Allow(context.Background(), "1.2.3.4")
	assert.False(t, ok)

	ok, _ = l.Allow(context.Background(), "5.6.7.8")
	assert.True(t, ok, "other keys have their own bucket")
}

func TestRateLimitInMemory(t *testing.T) {
	tier := NewTier("login-test", 2, nil, zerolog.Nop())
	defer tier.Close()
	h := RateLimit(tier)(http.HandlerFunc(okHandler))
	before := testutil.ToFloat64(metrics.RateLimited.WithLabelValues("login-test"))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5001").Code)

	rec := hit(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"Слишком много запросов. Попробуйте позже."}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimited.WithLabelValues("login-test")))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:5000").Code)
}

func TestRateLimitRedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tier := NewTier("register", 1, rdb, zerolog.Nop())
	defer tier.Close()
	h := RateLimit(tier)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2").Code)

	v, err := mr.Get("ratelimit:register:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestRateLimitFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	tier := NewTier("global", 1, rdb, zerolog.Nop())
	defer tier.Close()
	h := RateLimit(tier)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", ClientIP(req))
}
