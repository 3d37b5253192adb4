package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/metrics"
	"github.com/carmasterapp/car-master/internal/redis"
)

// Limiter admits or rejects redemption attempts per identity within fixed
// time buckets. Every call counts as an attempt, admitted or not.
type Limiter interface {
	Admit(ctx context.Context, identity string) bool
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

type RateLimitOptions struct {
	// Scope namespaces the counters so separate limiters never share keys.
	Scope     string
	Threshold int
	Bucket    time.Duration
	Clock     Clock
}

func (o RateLimitOptions) withDefaults() RateLimitOptions {
	if o.Scope == "" {
		o.Scope = "redeem"
	}
	if o.Threshold <= 0 {
		o.Threshold = 5
	}
	if o.Bucket < time.Second {
		o.Bucket = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

func (o RateLimitOptions) bucketOf(now time.Time) int64 {
	return now.Unix() / int64(o.Bucket/time.Second)
}

// RedisLimiter keeps counters in Redis so limits hold across instances.
type RedisLimiter struct {
	client goredis.Cmdable
	opts   RateLimitOptions
}

func NewRedisLimiter(client goredis.Cmdable, opts RateLimitOptions) *RedisLimiter {
	return &RedisLimiter{client: client, opts: opts.withDefaults()}
}

func (l *RedisLimiter) Admit(ctx context.Context, identity string) bool {
	key := redis.RateLimitKey(l.opts.Scope, identity, l.opts.bucketOf(l.opts.Clock()))

	var incr *goredis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*l.opts.Bucket)
		return nil
	})
	if err != nil {
		// Storage trouble must not lock legitimate users out.
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("rate limit check failed, admitting request")
		return true
	}

	if incr.Val() > int64(l.opts.Threshold) {
		metrics.RecordRateLimited()
		return false
	}
	return true
}

// MemoryLimiter is the single-instance limiter used when Redis is not configured.
type MemoryLimiter struct {
	counters *cache.Cache
	opts     RateLimitOptions
}

func NewMemoryLimiter(opts RateLimitOptions) *MemoryLimiter {
	opts = opts.withDefaults()
	return &MemoryLimiter{
		counters: cache.New(2*opts.Bucket, 4*opts.Bucket),
		opts:     opts,
	}
}

func (l *MemoryLimiter) Admit(_ context.Context, identity string) bool {
	key := redis.RateLimitKey(l.opts.Scope, identity, l.opts.bucketOf(l.opts.Clock()))

	// Add only succeeds for the first attempt in a bucket; later attempts increment.
	count := 1
	if err := l.counters.Add(key, 1, cache.DefaultExpiration); err != nil {
		n, err := l.counters.IncrementInt(key, 1)
		if err != nil {
			// The entry expired between Add and Increment; start over.
			l.counters.Set(key, 1, cache.DefaultExpiration)
			n = 1
		}
		count = n
	}

	if count > l.opts.Threshold {
		metrics.RecordRateLimited()
		return false
	}
	return true
}

// Len reports how many counters are retained. Exposed for retention checks.
func (l *MemoryLimiter) Len() int {
	return l.counters.ItemCount()
}
