package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared redis instance, for deployments running
// more than one server process. Expiry is delegated to redis TTLs, so no
// janitor is needed.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *Redis) GetDel(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// key lost its TTL (e.g. expired between INCR and PTTL); re-arm
		ttl = window
		_ = r.client.Expire(ctx, key, window).Err()
	}

	return n, time.Now().Add(ttl), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
