package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/chative/lending-agent/internal/agent/model"
	errx "github.com/chative/lending-agent/internal/core/error"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// RedisCheckpointStore keeps each thread as a Redis list of JSON messages.
type RedisCheckpointStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCheckpointStore(rdb redis.Cmdable, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb, ttl: ttl}
}

func (r *RedisCheckpointStore) threadKey(threadID string) string {
	return fmt.Sprintf("conversation:%s:messages", threadID)
}

func (r *RedisCheckpointStore) Load(ctx context.Context, threadID string) ([]*schema.Message, error) {
	key := r.threadKey(threadID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load thread from redis")
		return nil, errx.WrapRedis(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("threadID", threadID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

// Save replaces the list atomically and refreshes the TTL.
func (r *RedisCheckpointStore) Save(ctx context.Context, threadID string, messages []*schema.Message) error {
	key := r.threadKey(threadID)

	rows := make([]any, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("threadID", threadID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, b)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(rows) > 0 {
		pipe.RPush(ctx, key, rows...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save thread to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Clear drops a thread.
func (r *RedisCheckpointStore) Clear(ctx context.Context, threadID string) error {
	key := r.threadKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete thread from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Len returns the number of stored messages for a thread.
func (r *RedisCheckpointStore) Len(ctx context.Context, threadID string) (int, error) {
	key := r.threadKey(threadID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get thread length from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.CheckpointStore = (*RedisCheckpointStore)(nil)
