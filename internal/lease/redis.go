package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/archivist/internal/core"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed locker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL bounds how long a crashed holder can keep an object locked.
	// It must exceed the slowest expected move.
	TTL time.Duration `mapstructure:"ttl"`
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "archivist:lease:",
		TTL:       15 * time.Minute,
	}
}

// RedisLocker shares leases between processes through Redis.
//
// A lease is a key set with NX and a random token; release deletes the key only
// while it still holds that token, so an expired holder cannot drop a newer lease.
type RedisLocker struct {
	client *redis.Client
	config RedisConfig
}

// NewRedis connects to Redis and creates a locker.
func NewRedis(cfg RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient creates a locker with an existing Redis client.
func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisConfig().TTL
	}
	return &RedisLocker{client: client, config: cfg}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	k := r.config.KeyPrefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, k, token, r.config.TTL).Result()
	if err != nil {
		return nil, core.WrapError(core.ErrLeaseFailed, err)
	}
	if !ok {
		return nil, core.WrapError(core.ErrObjectBusy, fmt.Errorf("object %s", key))
	}
	return &redisLease{client: r.client, key: k, token: token}, nil
}

// Close closes the underlying client
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

// releaseScript deletes KEYS[1] only if it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return core.WrapError(core.ErrLeaseFailed, err)
	}
	return nil
}
