package conversations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/model"
	"github.com/chative/lending-agent/internal/agent/repo"
	logx "github.com/chative/lending-agent/pkg/logger"
)

func toolCall(id, name string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: "{}"}}
}

func TestSettleDropsDanglingToolCalls(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("q1"),
		schema.AssistantMessage("", []schema.ToolCall{toolCall("call_1", "get_balance")}),
		schema.ToolMessage("42", "call_1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		schema.AssistantMessage("checking", []schema.ToolCall{toolCall("call_2", "render_decision")}),
		schema.ToolMessage("orphan", "call_9"),
	}

	got := settle(msgs)
	roles := make([]schema.RoleType, len(got))
	for i, m := range got {
		roles[i] = m.Role
	}
	assert.Equal(t, []schema.RoleType{
		schema.User, schema.Assistant, schema.Tool, schema.Assistant, schema.User, schema.Assistant,
	}, roles)
	assert.Empty(t, got[5].ToolCalls)
	assert.Equal(t, "checking", got[5].Content)
}

func TestTrimTailStartsAtUserMessage(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("q1"),
		schema.AssistantMessage("", []schema.ToolCall{toolCall("call_1", "get_balance")}),
		schema.ToolMessage("42", "call_1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		schema.AssistantMessage("a2", nil),
	}

	got := trimTail(msgs, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Content)

	assert.Len(t, trimTail(msgs, 0), 6)
	assert.Len(t, trimTail(msgs, 100), 6)
	assert.Empty(t, trimTail(nil, 5))

	// the newest turn alone exceeds the window: keep it from its user message
	long := append([]*schema.Message{schema.AssistantMessage("a0", nil), schema.UserMessage("q3")}, msgs[1:4]...)
	got = trimTail(long, 2)
	require.Len(t, got, 4)
	assert.Equal(t, "q3", got[0].Content)
}

func TestCommitKeepsTurnLongerThanWindow(t *testing.T) {
	logx.Discard()
	store := repo.NewMemoryCheckpointStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "t1", []*schema.Message{
		schema.UserMessage("hello"),
		schema.AssistantMessage("Hi! How can I help?", nil),
	}))

	mm := NewMessagesManager(store, model.ConversationConfig{HistoryWindow: 20})
	st, err := mm.Begin(ctx, model.TurnInput{ThreadID: "t1", Query: "compare all my applications", Caller: model.Caller{UserID: "user-001", Role: "borrower"}})
	require.NoError(t, err)

	n := 0
	for round := 0; round < 5; round++ {
		var calls []schema.ToolCall
		var results []*schema.Message
		for i := 0; i < 3; i++ {
			n++
			id := fmt.Sprintf("call_%d", n)
			calls = append(calls, toolCall(id, "get_application_status"))
			results = append(results, schema.ToolMessage("{}", id))
		}
		st.Apply(model.Patch{Messages: append([]*schema.Message{schema.AssistantMessage("", calls)}, results...), ToolRounds: 1})
	}
	st.Apply(model.Patch{Messages: []*schema.Message{schema.AssistantMessage("Here is the comparison.", nil)}})
	require.Greater(t, len(st.Output())+1, 20)

	require.NoError(t, mm.Commit(ctx, st))

	saved, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, saved, len(st.Output())+1)
	assert.Equal(t, "compare all my applications", saved[0].Content)
	assert.Equal(t, "Here is the comparison.", saved[len(saved)-1].Content)
}

func TestBeginAndCommit(t *testing.T) {
	logx.Discard()
	store := repo.NewMemoryCheckpointStore()
	mm := NewMessagesManager(store, model.ConversationConfig{HistoryWindow: 20})
	ctx := context.Background()
	in := model.TurnInput{ThreadID: "t1", Query: "hello", Caller: model.Caller{UserID: "user-001", Role: "borrower"}}

	st, err := mm.Begin(ctx, in)
	require.NoError(t, err)
	assert.Len(t, st.Messages, 1)
	assert.Equal(t, 1, st.OutputStart)

	st.Apply(model.Patch{Messages: []*schema.Message{schema.AssistantMessage("Hi! How can I help?", nil)}})
	require.NoError(t, mm.Commit(ctx, st))

	in.Query = "what's my balance?"
	next, err := mm.Begin(ctx, in)
	require.NoError(t, err)
	require.Len(t, next.Messages, 3)
	assert.Equal(t, "hello", next.Messages[0].Content)
	assert.Equal(t, "what's my balance?", next.UserText())
	assert.Equal(t, 3, next.OutputStart)
}

func TestCommitSkipsBlockedTurn(t *testing.T) {
	store := repo.NewMemoryCheckpointStore()
	mm := NewMessagesManager(store, model.ConversationConfig{HistoryWindow: 20})
	ctx := context.Background()

	st, err := mm.Begin(ctx, model.TurnInput{ThreadID: "t1", Query: "something unsafe"})
	require.NoError(t, err)
	st.Apply(model.Patch{SafetyBlocked: true})
	require.NoError(t, mm.Commit(ctx, st))

	stored, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]*schema.Message, error) {
	return nil, errors.New("store down")
}

func (failingStore) Save(context.Context, string, []*schema.Message) error {
	return errors.New("store down")
}

func TestStoreErrorsPropagate(t *testing.T) {
	mm := NewMessagesManager(failingStore{}, model.ConversationConfig{})
	ctx := context.Background()

	_, err := mm.Begin(ctx, model.TurnInput{ThreadID: "t1", Query: "hi"})
	assert.ErrorContains(t, err, "store down")

	_, err = mm.Begin(ctx, model.TurnInput{Query: "hi"})
	assert.ErrorContains(t, err, "thread id")

	st := model.NewTurnState(model.TurnInput{ThreadID: "t1", Query: "hi"}, nil)
	assert.ErrorContains(t, mm.Commit(ctx, st), "store down")
}
