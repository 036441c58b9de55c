// Package lease provides a lock shared by all instances of the service, so
// only one of them publishes at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lease is not held anymore")

// deletes the key only when it still holds our token, so an expired lease
// taken over by another instance is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLease struct {
	client redis.UniversalClient
	key    string
}

func NewRedisLease(client redis.UniversalClient, key string) *RedisLease {
	if client == nil {
		panic("missing redis client")
	}
	if key == "" {
		panic("missing lease key")
	}

	return &RedisLease{
		client: client,
		key:    key,
	}
}

func (l *RedisLease) TryAcquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release lease %s: %w", l.key, err)
		}
		if deleted == 0 {
			return ErrNotHeld
		}
		return nil
	}

	return release, true, nil
}
