// Package challenge provides a Redis-backed single-use guard for step-up
// challenge identifiers. Consuming an identifier twice fails, which makes
// temp tokens single-use even across engine replicas.
package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ac:chal"

// Guard defines a public type used by authcore APIs.
//
// Guard instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Guard struct {
	client *redis.Client
	prefix string
}

// NewGuard describes the newguard operation and its observable behavior.
//
// NewGuard may return an error when input validation, dependency calls, or security checks fail.
// NewGuard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewGuard(client *redis.Client, prefix string) (*Guard, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Guard{client: client, prefix: prefix}, nil
}

// Consume marks id as spent for ttl and reports whether this call was the
// first to do so. The key write and the first-use check are a single SETNX,
// so concurrent consumers of the same id cannot both succeed.
func (g *Guard) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if g == nil || g.client == nil {
		return false, errors.New("challenge guard not initialized")
	}
	if id == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return g.client.SetNX(ctx, g.key(id), "1", ttl).Result()
}

func (g *Guard) key(id string) string {
	return g.prefix + ":" + id
}
