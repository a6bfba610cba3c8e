// Package persistence implements Redis-backed snapshot and event stores
// for the gantry engine.
package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	corep "github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
)

// RedisSnapshotStore is a SnapshotStore backed by Redis. It uses a simple
// key structure:
//
//	<prefix>wf:<id>             => gob-encoded redisSnapshotPayload
//	<prefix>idx:all             => SET of all workflow IDs
//	<prefix>idx:name:<name>     => SET of workflow IDs for a given name
//	<prefix>idx:status:<status> => SET of workflow IDs for a given status
//
// The indexes are best-effort; they are always updated on save, and
// ListSnapshots re-filters by payload so stale index entries are harmless.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
}

var _ corep.SnapshotStore = (*RedisSnapshotStore)(nil)

type redisSnapshotPayload struct {
	ID        string
	Name      string
	Status    string
	Steps     []byte
	Data      []byte
	History   []byte
	CreatedAt int64
}

// NewRedisSnapshotStore creates a RedisSnapshotStore.
// prefix is optional but recommended (e.g. "gantry:").
func NewRedisSnapshotStore(client *redis.Client, prefix string) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "gantry:"
	}
	return &RedisSnapshotStore{client: client, prefix: prefix}
}

func (r *RedisSnapshotStore) keyWorkflow(id string) string {
	return r.prefix + "wf:" + id
}

func (r *RedisSnapshotStore) keyAll() string {
	return r.prefix + "idx:all"
}

func (r *RedisSnapshotStore) keyName(name string) string {
	return r.prefix + "idx:name:" + name
}

func (r *RedisSnapshotStore) keyStatus(status api.Status) string {
	return r.prefix + "idx:status:" + string(status)
}

func (r *RedisSnapshotStore) SaveSnapshot(ctx context.Context, w *api.Workflow) error {
	data, err := encodeSnapshot(w)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keyWorkflow(w.ID), data, 0).Err(); err != nil {
		return err
	}

	// Index updates are best-effort; ListSnapshots filters by payload, so
	// an entry left under an old status just costs a fetch.
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.keyAll(), w.ID)
	pipe.SAdd(ctx, r.keyName(w.Name), w.ID)
	pipe.SAdd(ctx, r.keyStatus(w.Status), w.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (r *RedisSnapshotStore) GetSnapshot(ctx context.Context, id string) (*api.Workflow, error) {
	data, err := r.client.Get(ctx, r.keyWorkflow(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, corep.ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

func (r *RedisSnapshotStore) ListSnapshots(ctx context.Context, filter corep.SnapshotFilter) ([]*api.Workflow, error) {
	var ids []string
	var err error

	switch {
	case filter.Name != "" && filter.Status != "":
		ids, err = r.client.SInter(ctx, r.keyName(filter.Name), r.keyStatus(filter.Status)).Result()
	case filter.Name != "":
		ids, err = r.client.SMembers(ctx, r.keyName(filter.Name)).Result()
	case filter.Status != "":
		ids, err = r.client.SMembers(ctx, r.keyStatus(filter.Status)).Result()
	default:
		ids, err = r.client.SMembers(ctx, r.keyAll()).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.keyWorkflow(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var out []*api.Workflow
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		w, err := decodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		// Re-check against the filter; index sets may hold stale entries
		// from before a status change.
		if filter.Name != "" && w.Name != filter.Name {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, w)
	}

	// The index sets are unordered; restore creation order.
	sortByCreatedAt(out)
	return out, nil
}

func (r *RedisSnapshotStore) DeleteSnapshot(ctx context.Context, id string) error {
	w, err := r.GetSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, corep.ErrSnapshotNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.keyWorkflow(id))
	pipe.SRem(ctx, r.keyAll(), id)
	pipe.SRem(ctx, r.keyName(w.Name), id)
	pipe.SRem(ctx, r.keyStatus(w.Status), id)
	_, err = pipe.Exec(ctx)
	return err
}

func encodeSnapshot(w *api.Workflow) ([]byte, error) {
	steps, err := corep.EncodeSteps(w.Steps)
	if err != nil {
		return nil, err
	}
	data, err := corep.EncodeData(w.Data)
	if err != nil {
		return nil, err
	}
	history, err := corep.EncodeHistory(w.History)
	if err != nil {
		return nil, err
	}

	payload := redisSnapshotPayload{
		ID:        w.ID,
		Name:      w.Name,
		Status:    string(w.Status),
		Steps:     steps,
		Data:      data,
		History:   history,
		CreatedAt: w.CreatedAt.UnixNano(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*api.Workflow, error) {
	if len(data) == 0 {
		return nil, corep.ErrSnapshotNotFound
	}
	var payload redisSnapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}

	steps, err := corep.DecodeSteps(payload.Steps)
	if err != nil {
		return nil, err
	}
	wfData, err := corep.DecodeData(payload.Data)
	if err != nil {
		return nil, err
	}
	history, err := corep.DecodeHistory(payload.History)
	if err != nil {
		return nil, err
	}

	return &api.Workflow{
		ID:        payload.ID,
		Name:      payload.Name,
		Status:    api.Status(payload.Status),
		Steps:     steps,
		Data:      wfData,
		History:   history,
		CreatedAt: time.Unix(0, payload.CreatedAt),
	}, nil
}

func sortByCreatedAt(ws []*api.Workflow) {
	sort.Slice(ws, func(i, j int) bool {
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}
