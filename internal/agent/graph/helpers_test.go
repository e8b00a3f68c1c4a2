package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/chative/lending-agent/internal/agent/graph/conversations"
	"github.com/chative/lending-agent/internal/agent/graph/nodes"
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/model"
	"github.com/chative/lending-agent/internal/agent/repo"
	"github.com/chative/lending-agent/internal/testutils"
	logx "github.com/chative/lending-agent/pkg/logger"
)

var (
	borrower    = model.Caller{UserID: "user-001", Role: tools.RoleBorrower}
	underwriter = model.Caller{UserID: "uw-7", Role: tools.RoleUnderwriter}
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *recordingSink) Record(_ context.Context, ev model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

type harness struct {
	classifier *testutils.ChatModel
	fast       *testutils.ChatModel
	capable    *testutils.ChatModel
	guard      *testutils.ChatModel
	store      model.CheckpointStore
	loans      *tools.MemoryLoanStore
	audit      *recordingSink
	maxRounds  int
}

func newHarness() *harness {
	return &harness{
		classifier: testutils.Text("COMPLEX"),
		fast:       testutils.Text("fast answer"),
		capable:    testutils.Text("capable answer"),
		guard:      testutils.Text("safe"),
		store:      repo.NewMemoryCheckpointStore(),
		loans:      tools.NewMemoryLoanStore(tools.MockApplications...),
		audit:      &recordingSink{},
		maxRounds:  5,
	}
}

func (h *harness) chatModels() *nodes.ChatModels {
	cms := &nodes.ChatModels{
		Fast:             h.fast,
		Capable:          h.capable,
		FastModelName:    "gemini-2.5-flash",
		CapableModelName: "gemini-2.5-pro",
	}
	if h.classifier != nil {
		cms.Classifier = h.classifier
	}
	if h.guard != nil {
		cms.Safety = h.guard
	}
	return cms
}

func (h *harness) config() *GraphConfig {
	return &GraphConfig{
		ChatModels:      h.chatModels(),
		MessagesManager: conversations.NewMessagesManager(h.store, model.ConversationConfig{HistoryWindow: 20}),
		ToolTable:       tools.LendingTools(h.loans),
		Router:          model.RouterConfig{MaxSimpleWords: 20},
		ResponsePrompt:  model.ResponsePromptConfig{BusinessName: "Summit Lending"},
		MaxToolRounds:   h.maxRounds,
		Audit:           h.audit,
	}
}

func (h *harness) runner(t *testing.T) Runner {
	t.Helper()
	logx.Discard()
	r, err := BuildRunner(context.Background(), h.config())
	require.NoError(t, err)
	return r
}

func (h *harness) invoke(t *testing.T, query string, caller model.Caller) *model.TurnState {
	t.Helper()
	st, err := h.runner(t).Invoke(context.Background(), model.TurnInput{ThreadID: "thread-1", Query: query, Caller: caller})
	require.NoError(t, err)
	return st
}

func collect(ch <-chan model.Event) []model.Event {
	var out []model.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func ofType(events []model.Event, typ model.EventType) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev.Text)
		}
	}
	return out
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func toolCallWithArgs(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

// toolThenText requests call until the conversation ends with a tool result,
// then answers with text.
func toolThenText(call *schema.Message, text string) testutils.ReplyFunc {
	return func(_ context.Context, _ int, input []*schema.Message) (*schema.Message, error) {
		if input[len(input)-1].Role == schema.Tool {
			return schema.AssistantMessage(text, nil), nil
		}
		cp := *call
		cp.ToolCalls = append([]schema.ToolCall(nil), call.ToolCalls...)
		return &cp, nil
	}
}
