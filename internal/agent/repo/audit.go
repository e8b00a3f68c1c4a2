package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chative/lending-agent/internal/agent/model"
	errx "github.com/chative/lending-agent/internal/core/error"
	logx "github.com/chative/lending-agent/pkg/logger"
)

const DefaultAuditStream = "audit:events"

// stamp fills the id and timestamp when the caller left them empty.
func stamp(ev model.AuditEvent) model.AuditEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev
}

// RedisAuditSink appends events to a capped Redis stream.
type RedisAuditSink struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisAuditSink(rdb redis.Cmdable, stream string, maxLen int64) *RedisAuditSink {
	if stream == "" {
		stream = DefaultAuditStream
	}
	return &RedisAuditSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *RedisAuditSink) Record(ctx context.Context, ev model.AuditEvent) error {
	ev = stamp(ev)
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":    ev.ID,
			"kind":  ev.Kind,
			"event": string(b),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		logx.Error().Err(err).Str("stream", s.stream).Str("kind", ev.Kind).Msg("failed to append audit event")
		return errx.WrapRedis(err)
	}
	return nil
}

// LogAuditSink writes events to the structured log.
type LogAuditSink struct{}

func (LogAuditSink) Record(_ context.Context, ev model.AuditEvent) error {
	ev = stamp(ev)
	logx.Info().
		Str("audit_id", ev.ID).
		Str("kind", ev.Kind).
		Str("thread_id", ev.ThreadID).
		Str("user_id", ev.UserID).
		Str("role", ev.Role).
		Str("tool", ev.Tool).
		Str("outcome", ev.Outcome).
		Interface("detail", ev.Detail).
		Msg("audit")
	return nil
}

var (
	_ model.AuditSink = (*RedisAuditSink)(nil)
	_ model.AuditSink = LogAuditSink{}
)
