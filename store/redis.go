package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Tpanarchist/omen/core"
)

// RedisProviderOptions configures RedisProvider, grounded on gomind's
// core.RedisClientOptions (URL, DB isolation, namespace, optional
// logger).
type RedisProviderOptions struct {
	RedisURL  string
	DB        int
	Namespace string
	Logger    core.Logger
}

// RedisProvider is a StorageProvider backed by Redis: plain keys for
// record bodies, a sorted set per named index for time-ordered
// listing. Grounded on gomind's core.RedisClient wrapper, which offers
// the identical formatKey-namespaced Get/Set/Del plus ZAdd-based
// sorted-set operations this package composes into AddToIndex et al.
type RedisProvider struct {
	client    *goredis.Client
	namespace string
	logger    core.Logger
}

// NewRedisProvider dials Redis and verifies the connection with a
// bounded Ping, exactly as gomind's NewRedisClient does, so a
// misconfigured URL fails at construction rather than on first use.
func NewRedisProvider(opts RedisProviderOptions) (*RedisProvider, error) {
	if opts.RedisURL == "" {
		return nil, core.NewFrameworkError("store.NewRedisProvider", "store",
			fmt.Errorf("redis URL is required: %w", core.ErrInvalidConfiguration))
	}

	redisOpt, err := goredis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, core.NewFrameworkError("store.NewRedisProvider", "store",
			fmt.Errorf("invalid redis URL: %w", core.ErrInvalidConfiguration))
	}
	if opts.DB >= 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	client := goredis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, core.NewFrameworkError("store.NewRedisProvider", "store",
			fmt.Errorf("connecting to redis: %w", core.ErrConnectionFailed))
	}

	if opts.Logger != nil {
		opts.Logger.Info("store.redis_connected", map[string]interface{}{
			"namespace": opts.Namespace, "db": opts.DB,
		})
	}

	return &RedisProvider{client: client, namespace: opts.Namespace, logger: opts.Logger}, nil
}

// Close releases the underlying Redis connection.
func (r *RedisProvider) Close() error { return r.client.Close() }

func (r *RedisProvider) formatKey(key string) string {
	if r.namespace != "" {
		return r.namespace + ":" + key
	}
	return key
}

func (r *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.formatKey(key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.formatKey(key), value, ttl).Err()
}

func (r *RedisProvider) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.formatKey(key)).Err()
}

func (r *RedisProvider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	return n > 0, err
}

func (r *RedisProvider) AddToIndex(ctx context.Context, index, key string, score float64) error {
	return r.client.ZAdd(ctx, r.formatKey(index), &goredis.Z{Score: score, Member: key}).Err()
}

func (r *RedisProvider) ListByScoreDesc(ctx context.Context, index string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	return r.client.ZRevRange(ctx, r.formatKey(index), 0, stop).Result()
}

func (r *RedisProvider) RemoveFromIndex(ctx context.Context, index, key string) error {
	return r.client.ZRem(ctx, r.formatKey(index), key).Err()
}
