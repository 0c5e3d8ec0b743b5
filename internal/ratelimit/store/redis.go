// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/ratelimit"
)

const (
	redisKeyPrefix  = "ratewait:"
	redisMaxRetries = 16
)

// ErrTooMuchContention is returned when an optimistic transaction kept
// losing against concurrent writers.
var ErrTooMuchContention = errors.New("store: too much contention on key")

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string // optional
	DB       int
}

// Redis keeps limiter state in Redis so several daemons share limits.
// Updates use WATCH/MULTI and retry when another writer won.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("event", "store.connected").
		Str("backend", "redis").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis")

	return NewRedisFromClient(client, logger), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, logger zerolog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Backend() string { return BackendRedis }

func (r *Redis) Update(ctx context.Context, key string, ttl time.Duration, fn ratelimit.UpdateFunc) error {
	rkey := redisKeyPrefix + key

	txf := func(tx *redis.Tx) error {
		var (
			tat   int64
			found bool
		)
		raw, err := tx.Get(ctx, rkey).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			tat, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt state for %q: %w", key, err)
			}
			found = true
		}

		next, err := fn(tat, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, strconv.FormatInt(next, 10), ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, rkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	r.logger.Warn().
		Str("event", "store.contention").
		Str("backend", "redis").
		Str("key", key).
		Msg("giving up after repeated optimistic transaction failures")
	return fmt.Errorf("%w: %q", ErrTooMuchContention, key)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
