package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// RunGuard admits at most one scheduled run at a time.
type RunGuard interface {
	// TryAcquire returns ok=false without blocking when a run is active.
	// release must be called exactly once after a successful acquire.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalGuard is an in-process RunGuard.
type LocalGuard struct {
	running atomic.Bool
}

// NewLocalGuard returns an idle LocalGuard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// TryAcquire implements RunGuard.
func (g *LocalGuard) TryAcquire(context.Context) (func(), bool, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { g.running.Store(false) }, true, nil
}

// releaseScript deletes the lock only when it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// DefaultLockKey is the Redis key shared by all replicas.
const DefaultLockKey = "govjobs:scheduler:run"

type redisLocker interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisGuard is a RunGuard shared by every replica pointed at the same Redis.
// The lock expires after ttl so a crashed holder cannot wedge the schedule.
type RedisGuard struct {
	client redisLocker
	key    string
	ttl    time.Duration
	ids    jobs.IDGenerator
	logger *zap.Logger
}

// NewRedisGuard builds a RedisGuard over client.
func NewRedisGuard(client redisLocker, key string, ttl time.Duration, ids jobs.IDGenerator, logger *zap.Logger) *RedisGuard {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGuard{client: client, key: key, ttl: ttl, ids: ids, logger: logger.Named("run_guard")}
}

// TryAcquire implements RunGuard.
func (g *RedisGuard) TryAcquire(ctx context.Context) (func(), bool, error) {
	token, err := g.ids.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", g.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.client.Eval(releaseCtx, releaseScript, []string{g.key}, token).Err(); err != nil {
			g.logger.Error("Failed to release run lock", zap.String("key", g.key), zap.Error(err))
		}
	}
	return release, true, nil
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
