// Package redis provides a Redis-backed gantry engine: workflow snapshots
// and the lifecycle event log are persisted in Redis so workflows survive
// process restarts.
package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/petrijr/gantry"
	coree "github.com/petrijr/gantry/internal/engine"
	corep "github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
	redisp "github.com/petrijr/gantry/redis/internal/persistence"
)

// KeyPrefix is the default prefix for all gantry keys in Redis.
const KeyPrefix = "gantry:"

// NewEngine returns an Engine that persists workflow snapshots and the
// lifecycle event stream in Redis under KeyPrefix.
func NewEngine(client *redis.Client, reg *api.ExecutorRegistry, opts ...gantry.Option) api.Engine {
	return NewEngineWithPrefix(client, reg, KeyPrefix, opts...)
}

// NewEngineWithPrefix is NewEngine with a custom key prefix, for sharing
// one Redis between several engines.
func NewEngineWithPrefix(client *redis.Client, reg *api.ExecutorRegistry, prefix string, opts ...gantry.Option) api.Engine {
	snapshots := redisp.NewRedisSnapshotStore(client, prefix)
	events := redisp.NewRedisEventStore(client, prefix)

	cfg := coree.Config{Registry: reg, Snapshots: snapshots}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Observer = api.NewCompositeObserver(
		corep.NewObserver(events, cfg.Logger),
		cfg.Observer,
	)
	return coree.New(cfg)
}
