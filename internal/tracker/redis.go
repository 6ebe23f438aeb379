package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps job sets in Redis so several server instances share one view.
// Keys expire after ttl unless touched, so a crashed instance cannot leave jobs active forever.
type RedisStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisStore creates a store over an existing client. A non-positive ttl disables expiry.
func NewRedisStore(rdb goredis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *RedisStore) Add(ctx context.Context, key string, member int64) (bool, error) {
	var added *goredis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		added = pipe.SAdd(ctx, key, member)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return added.Val() == 1, nil
}

func (r *RedisStore) Remove(ctx context.Context, key string, member int64) error {
	if err := r.rdb.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis srem %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Members(ctx context.Context, key string) ([]int64, error) {
	raw, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis smembers %s: invalid member %q: %w", key, s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Touch resets the expiry of key to ttl. EXPIRE on a missing key is a no-op.
func (r *RedisStore) Touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}
