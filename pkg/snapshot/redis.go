package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// keyPrefix is the table name of snapshot hashes: SNAPSHOT|<device>|<tag>.
const keyPrefix = "SNAPSHOT"

// RedisStore keeps snapshots as Redis hashes so several operators can
// share one restore point.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a client; call Connect to verify reachability.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Connect tests the connection
func (r *RedisStore) Connect(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func redisKey(device string, tag Tag) string {
	return fmt.Sprintf("%s|%s|%s", keyPrefix, device, tag)
}

func (r *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	key := redisKey(snap.Device, snap.Tag)
	// DEL + HSET in one transaction so a shorter capture never inherits
	// stale fields.
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"content", snap.Content,
		"captured_at", snap.CapturedAt.UTC().Format(time.RFC3339Nano),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, device string, tag Tag) (*Snapshot, error) {
	key := redisKey(device, tag)
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, notFound(device, tag)
	}
	snap := &Snapshot{Device: device, Tag: tag, Content: vals["content"]}
	if ts, err := time.Parse(time.RFC3339Nano, vals["captured_at"]); err == nil {
		snap.CapturedAt = ts
	}
	return snap, nil
}

func (r *RedisStore) List(ctx context.Context) ([]*Snapshot, error) {
	keys, err := r.client.Keys(ctx, keyPrefix+"|*").Result()
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, key := range keys {
		parts := strings.Split(key, "|")
		if len(parts) != 3 {
			continue
		}
		tag, err := ParseTag(parts[2])
		if err != nil {
			continue
		}
		snap := &Snapshot{Device: parts[1], Tag: tag}
		if ts, err := r.client.HGet(ctx, key, "captured_at").Result(); err == nil {
			snap.CapturedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		out = append(out, snap)
	}
	sortSnapshots(out)
	return out, nil
}

// Close closes the connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
