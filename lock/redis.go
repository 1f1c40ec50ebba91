package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the key holds our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions tunes the Redis locker.
type RedisOptions struct {
	// Prefix is prepended to every key (default "bytebank:lock:").
	Prefix string
	// TTL bounds how long a crashed holder can block a user (default 10s).
	// A live holder renews its lease every TTL/3 until it unlocks.
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts (default 25ms).
	RetryInterval time.Duration
}

// Redis implements Locker with SET NX PX, a background lease renewal and a
// compare-and-delete release.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "bytebank:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{client: client, opts: opts}
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	full := r.opts.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.opts.TTL).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("lock/redis: acquire %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go r.renew(full, token, stop, done)

			return once(func() {
				close(stop)
				<-done
				// Release even if the caller's ctx is already cancelled.
				_ = releaseScript.Run(context.Background(), r.client, []string{full}, token).Err() //nolint:errcheck // TTL reclaims the key
			}), nil
		}

		timer := time.NewTimer(r.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// renewInterval is how often a held lease is extended.
func (r *Redis) renewInterval() time.Duration {
	return max(r.opts.TTL/3, time.Millisecond)
}

// renew extends the lease until stop is closed or the key is lost.
func (r *Redis) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.renewInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.TTL)
		n, err := extendScript.Run(ctx, r.client, []string{key}, token, r.opts.TTL.Milliseconds()).Int64()
		cancel()
		if err == nil && n == 0 {
			// Expired and possibly taken by another holder.
			return
		}
	}
}
