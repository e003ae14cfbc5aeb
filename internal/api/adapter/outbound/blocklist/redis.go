package blocklist

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding blocked client addresses.
const DefaultRedisKey = "relay:blocked_ips"

type setMembership interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
}

// Redis checks addresses against a Redis set, so operators can block clients
// at runtime with SADD.
type Redis struct {
	client setMembership
	key    string
}

var _ port.Blocklist = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) IsBlocked(ctx context.Context, ip string) (bool, error) {
	blocked, err := r.client.SIsMember(ctx, r.key, ip).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist: check %s in %s: %w", ip, r.key, err)
	}
	return blocked, nil
}

// Chain reports an address as blocked if any list blocks it. Lookup errors are
// returned only when no list blocked the address.
type Chain []port.Blocklist

var _ port.Blocklist = Chain(nil)

func (c Chain) IsBlocked(ctx context.Context, ip string) (bool, error) {
	var firstErr error
	for _, list := range c {
		blocked, err := list.IsBlocked(ctx, ip)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if blocked {
			return true, nil
		}
	}
	return false, firstErr
}
