package repo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Hit counts one request against a fixed window and returns the count so far
// and the time left in the window.
func (r *Redis) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.C.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := r.C.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	left, err := r.C.PTTL(ctx, key).Result()
	if err != nil || left < 0 {
		// key lost its TTL somehow; never let it live forever
		_ = r.C.Expire(ctx, key, window).Err()
		left = window
	}
	return count, left, nil
}
