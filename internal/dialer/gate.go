package dialer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dialer-platform/pkg/utils"
)

// DialGate bounds concurrent call originations per organization.
type DialGate interface {
	Acquire(ctx context.Context, organizationID string) (bool, error)
	Release(ctx context.Context, organizationID string)
}

// RedisDialGate enforces the origination cap across process instances.
// Slots carry a TTL so a crashed process cannot pin them forever.
type RedisDialGate struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisDialGate(rdb *redis.Client, limit int) *RedisDialGate {
	return &RedisDialGate{rdb: rdb, limit: limit, ttl: 2 * time.Minute}
}

func (g *RedisDialGate) key(organizationID string) string {
	return "dialer:originating:" + organizationID
}

func (g *RedisDialGate) Acquire(ctx context.Context, organizationID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, g.key(organizationID), g.limit, g.ttl)
}

func (g *RedisDialGate) Release(ctx context.Context, organizationID string) {
	_ = utils.ReleaseConcurrencyCap(ctx, g.rdb, g.key(organizationID))
}
