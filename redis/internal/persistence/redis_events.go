package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	corep "github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
)

// RedisEventStore stores workflow lifecycle events as a Redis LIST per
// workflow:
//
//	<prefix>events:<workflow_id> => RPUSH of gob-encoded api.Event
//
// RPUSH preserves append order, so ListEvents returns events in the order
// the transitions occurred.
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ corep.EventStore = (*RedisEventStore)(nil)

// NewRedisEventStore creates a RedisEventStore with the given key prefix.
func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "gantry:"
	}
	return &RedisEventStore{client: client, prefix: prefix}
}

func (r *RedisEventStore) keyEvents(workflowID string) string {
	return r.prefix + "events:" + workflowID
}

func (r *RedisEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return err
	}
	return r.client.RPush(ctx, r.keyEvents(ev.WorkflowID), buf.Bytes()).Err()
}

func (r *RedisEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.Event, error) {
	raw, err := r.client.LRange(ctx, r.keyEvents(workflowID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]api.Event, 0, len(raw))
	for _, item := range raw {
		var ev api.Event
		if err := gob.NewDecoder(bytes.NewReader([]byte(item))).Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// DropEvents removes the event log of a workflow.
func (r *RedisEventStore) DropEvents(ctx context.Context, workflowID string) error {
	return r.client.Del(ctx, r.keyEvents(workflowID)).Err()
}
