package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tfinance/tfinance-api/internal/metrics"
	"github.com/tfinance/tfinance-api/internal/redisstore"
)

const (
	limiterWindow = time.Minute
	visitorTTL    = 10 * time.Minute
)

// Limiter decides whether another request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket refilled at perMinute per minute.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryLimiter starts a limiter allowing perMinute requests per key.
// Close stops its cleanup goroutine.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	rl := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Every(limiterWindow / time.Duration(perMinute)),
		burst:    perMinute,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[key] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// Allow never fails.
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.getLimiter(key).Allow(), nil
}

// Close stops the cleanup goroutine.
func (rl *MemoryLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(visitorTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// fallbackLimiter asks primary first and uses fallback while primary errors.
type fallbackLimiter struct {
	tier     string
	primary  Limiter
	fallback Limiter
	log      zerolog.Logger
}

func (f *fallbackLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := f.primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	f.log.Warn().Err(err).Str("tier", f.tier).Msg("redis rate limiter unavailable, using in-memory limiter")
	return f.fallback.Allow(ctx, key)
}

// Tier is a named rate limit shared by a group of routes.
type Tier struct {
	Name    string
	limiter Limiter
	memory  *MemoryLimiter
}

// NewTier builds a per-minute limit. With a Redis client the window is
// shared across instances and the in-memory bucket is only a fallback.
func NewTier(name string, perMinute int, rdb redis.Cmdable, log zerolog.Logger) *Tier {
	mem := NewMemoryLimiter(perMinute)
	t := &Tier{Name: name, limiter: mem, memory: mem}
	if rdb != nil {
		t.limiter = &fallbackLimiter{
			tier:     name,
			primary:  redisstore.NewFixedWindow(rdb, name, perMinute, limiterWindow),
			fallback: mem,
			log:      log,
		}
	}
	return t
}

// Close releases the tier's in-memory state.
func (t *Tier) Close() {
	t.memory.Close()
}

// RateLimit returns middleware that limits requests per client IP.
func RateLimit(t *Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := t.limiter.Allow(r.Context(), ClientIP(r))
			if err == nil && !ok {
				metrics.RateLimited.WithLabelValues(t.Name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(limiterWindow.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. chi's RealIP middleware
// rewrites RemoteAddr when the service runs behind a proxy.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
