package locker

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "hr-help:delivery:"

// RedisLocker marks event ids as handled by taking a lock that is never
// released. The lock expires after ttl, which bounds how long a redelivery is
// recognised.
type RedisLocker struct {
	rdb    *redis.Client
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to parse redis url")
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Annotatef(err, "failed to reach redis")
	}

	return NewRedisLockerFromClient(rdb, prefix, ttl), nil
}

func NewRedisLockerFromClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisLocker{
		rdb:    rdb,
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
	}
}

// FirstDelivery returns true only for the first call with eventID within the ttl.
func (r *RedisLocker) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	_, err := r.client.Obtain(ctx, r.prefix+eventID, r.ttl, nil)
	if err == redislock.ErrNotObtained {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotatef(err, "failed to mark event %s", eventID)
	}
	return true, nil
}

func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}
