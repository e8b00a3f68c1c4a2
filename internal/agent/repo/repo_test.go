package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	logx.Discard()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func sampleThread() []*schema.Message {
	return []*schema.Message{
		schema.UserMessage("What's my balance?"),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: schema.FunctionCall{Name: "get_balance", Arguments: "{}"},
		}}),
		schema.ToolMessage("The outstanding balance on APP-1001 is $348120.55.", "call_1"),
		schema.AssistantMessage("Your balance is $348,120.55.", nil),
	}
}

func TestRedisCheckpointStoreRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisCheckpointStore(rdb, time.Hour)
	ctx := context.Background()

	msgs, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, msgs)

	require.NoError(t, store.Save(ctx, "t1", sampleThread()))
	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, schema.User, got[0].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "get_balance", got[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", got[2].ToolCallID)
	assert.Equal(t, "Your balance is $348,120.55.", got[3].Content)

	assert.Equal(t, time.Hour, mr.TTL("conversation:t1:messages"))

	n, err := store.Len(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRedisCheckpointStoreSaveReplaces(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewRedisCheckpointStore(rdb, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t1", sampleThread()))
	require.NoError(t, store.Save(ctx, "t1", []*schema.Message{schema.UserMessage("hello")}))

	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)

	require.NoError(t, store.Save(ctx, "t1", nil))
	got, err = store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCheckpointStoreClear(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewRedisCheckpointStore(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t1", sampleThread()))
	require.NoError(t, store.Clear(ctx, "t1"))
	n, err := store.Len(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisCheckpointStoreCorruptRow(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewRedisCheckpointStore(rdb, 0)
	ctx := context.Background()

	require.NoError(t, rdb.RPush(ctx, "conversation:t1:messages", "not json").Err())
	_, err := store.Load(ctx, "t1")
	assert.ErrorContains(t, err, "index 0")
}

func TestRedisCheckpointStoreUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisCheckpointStore(rdb, 0)
	mr.Close()

	_, err := store.Load(context.Background(), "t1")
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), "t1", sampleThread()))
}

func TestMemoryCheckpointStoreIsolation(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx := context.Background()

	msgs := sampleThread()
	require.NoError(t, store.Save(ctx, "t1", msgs))
	msgs[3].Content = "mutated"

	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Your balance is $348,120.55.", got[3].Content)

	got[0].Content = "mutated again"
	again, _ := store.Load(ctx, "t1")
	assert.Equal(t, "What's my balance?", again[0].Content)

	none, err := store.Load(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRedisAuditSink(t *testing.T) {
	_, rdb := newRedis(t)
	sink := NewRedisAuditSink(rdb, "", 1000)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, model.AuditEvent{
		ThreadID: "t1",
		UserID:   "user-001",
		Role:     "borrower",
		Kind:     model.AuditToolDenied,
		Tool:     "render_decision",
		Outcome:  "denied",
	}))

	entries, err := rdb.XRange(ctx, DefaultAuditStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditToolDenied, entries[0].Values["kind"])

	var ev model.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, entries[0].Values["id"], ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.Equal(t, "render_decision", ev.Tool)
}

func TestLogAuditSink(t *testing.T) {
	logx.Discard()
	assert.NoError(t, LogAuditSink{}.Record(context.Background(), model.AuditEvent{Kind: model.AuditInputBlocked}))
}
