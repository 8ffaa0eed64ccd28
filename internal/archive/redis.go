package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"latksync/internal/stroke"
)

// DefaultTTL is how long an idle room stays in Redis.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps one list of stroke JSON per frame (frame:<room>:<index>)
// and a sorted set of the room's frame indices (frames:<room>). Every write
// refreshes the TTL of both keys.
//
// A nil *RedisStore is a no-op store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL (redis://host:port/db) and verifies the
// connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func frameKey(room string, index int) string {
	return fmt.Sprintf("frame:%s:%d", room, index)
}

func indexKey(room string) string {
	return "frames:" + room
}

func (r *RedisStore) Append(ctx context.Context, room string, s stroke.Stroke) error {
	return r.AppendBatch(ctx, []Entry{{Room: room, Stroke: s}})
}

// AppendBatch writes all entries in one MULTI/EXEC transaction.
func (r *RedisStore) AppendBatch(ctx context.Context, entries []Entry) error {
	if r == nil || r.client == nil || len(entries) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			data, err := json.Marshal(e.Stroke)
			if err != nil {
				return fmt.Errorf("encode stroke: %w", err)
			}
			fk, ik := frameKey(e.Room, e.Stroke.Index), indexKey(e.Room)
			pipe.RPush(ctx, fk, data)
			pipe.ZAdd(ctx, ik, redis.Z{Score: float64(e.Stroke.Index), Member: strconv.Itoa(e.Stroke.Index)})
			pipe.Expire(ctx, fk, r.ttl)
			pipe.Expire(ctx, ik, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (r *RedisStore) Frame(ctx context.Context, room string, index int) ([]stroke.Stroke, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	items, err := r.client.LRange(ctx, frameKey(room, index), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis frame %s/%d: %w", room, index, err)
	}
	out := make([]stroke.Stroke, 0, len(items))
	for _, item := range items {
		var s stroke.Stroke
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode stroke in %s: %w", frameKey(room, index), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) Indices(ctx context.Context, room string) ([]int, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	members, err := r.client.ZRange(ctx, indexKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis indices %s: %w", room, err)
	}
	out := make([]int, 0, len(members))
	for _, m := range members {
		idx, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	return out, nil
}

// Clear removes every key of a room.
func (r *RedisStore) Clear(ctx context.Context, room string) error {
	if r == nil || r.client == nil {
		return nil
	}
	indices, err := r.Indices(ctx, room)
	if err != nil {
		return err
	}
	keys := []string{indexKey(room)}
	for _, idx := range indices {
		keys = append(keys, frameKey(room, idx))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
