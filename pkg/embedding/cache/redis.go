// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/leseb/quizsearch/pkg/provider"
)

func init() {
	Providers.Register("redis", func(ctx context.Context, params provider.Params) (Cache, error) {
		db, err := params.Int("db", 0)
		if err != nil {
			return nil, err
		}
		ttl, err := params.Duration("ttl", 15*time.Minute)
		if err != nil {
			return nil, err
		}
		return NewRedis(ctx, RedisOptions{
			Addr:      params.String("addr", "localhost:6379"),
			Password:  params.String("password", ""),
			DB:        db,
			TTL:       ttl,
			KeyPrefix: params.String("key_prefix", "quizsearch:qvec:"),
		})
	})
}

// RedisOptions configures the Redis cache.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// Redis stores vectors as packed float32 strings with a TTL.
type Redis struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{
		client: rdb,
		closer: rdb.Close,
		ttl:    opts.TTL,
		prefix: opts.KeyPrefix,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, vec []float32) error {
	if err := r.client.Set(ctx, r.prefix+key, encode(vec), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
