package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the bridge configuration.
const DefaultRedisKey = "sockbridge:config"

// Redis reads the configuration from a Redis hash on every Load, so a
// central store can repoint many bridges without restarting them.
type Redis struct {
	Client *redis.Client
	Key    string
}

// NewRedis connects a Redis source.
func NewRedis(addr, password string, db int, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{
		Client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		Key:    key,
	}
}

// Load implements Source.
func (r *Redis) Load(ctx context.Context) (*Snapshot, error) {
	values, err := r.Client.HGetAll(ctx, r.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.Key, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: redis key %s", ErrNotFound, r.Key)
	}
	if _, ok := values[KeyEnabled]; !ok {
		values[KeyEnabled] = "true"
	}
	return FromMap(values)
}

// Close implements io.Closer.
func (r *Redis) Close() error {
	return r.Client.Close()
}
