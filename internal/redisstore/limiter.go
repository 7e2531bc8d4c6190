package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the counter and gives it a TTL when it has none, in
// one atomic step. A counter left without a TTL is repaired on its next hit.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindow counts hits per key in fixed windows.
type FixedWindow struct {
	client redis.Cmdable
	tier   string
	limit  int
	window time.Duration
}

func NewFixedWindow(client redis.Cmdable, tier string, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{client: client, tier: tier, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + f.tier + ":" + key

	n, err := hitScript.Run(ctx, f.client, []string{redisKey}, f.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(f.limit), nil
}
