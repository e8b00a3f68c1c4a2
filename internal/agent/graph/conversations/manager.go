package conversations

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// MessagesManager loads prior turns into a fresh TurnState and persists the
// thread once the turn has finished.
type MessagesManager struct {
	store  model.CheckpointStore
	window int
}

func NewMessagesManager(store model.CheckpointStore, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		store:  store,
		window: config.HistoryWindow,
	}
}

// Begin seeds a TurnState for in with the thread's recent history.
func (cm *MessagesManager) Begin(ctx context.Context, in model.TurnInput) (*model.TurnState, error) {
	if in.ThreadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	history, err := cm.store.Load(ctx, in.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", in.ThreadID, err)
	}
	history = trimTail(settle(history), cm.window)
	logx.Debug().Str("thread_id", in.ThreadID).Int("history", len(history)).Msg("turn started")
	return model.NewTurnState(in, history), nil
}

// Commit persists the finished turn. Turns stopped by the input shield are not
// stored so the blocked text never reaches a later prompt.
func (cm *MessagesManager) Commit(ctx context.Context, st *model.TurnState) error {
	if st.SafetyBlocked {
		logx.Debug().Str("thread_id", st.ThreadID).Msg("blocked turn not persisted")
		return nil
	}
	msgs := trimTail(settle(st.Messages), cm.window)
	if err := cm.store.Save(ctx, st.ThreadID, msgs); err != nil {
		return fmt.Errorf("save thread %s: %w", st.ThreadID, err)
	}
	return nil
}

// settle drops system messages and tool calls that never got a response, and
// tool messages whose call is gone. The result is always valid model input.
func settle(messages []*schema.Message) []*schema.Message {
	answered := make(map[string]bool)
	for _, m := range messages {
		if m != nil && m.Role == schema.Tool {
			answered[m.ToolCallID] = true
		}
	}

	called := make(map[string]bool)
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil || m.Role == schema.System {
			continue
		}
		switch m.Role {
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, m)
				continue
			}
			complete := true
			for _, tc := range m.ToolCalls {
				if !answered[tc.ID] {
					complete = false
					break
				}
			}
			if complete {
				for _, tc := range m.ToolCalls {
					called[tc.ID] = true
				}
				out = append(out, m)
			} else if m.Content != "" {
				out = append(out, schema.AssistantMessage(m.Content, nil))
			}
		case schema.Tool:
			if called[m.ToolCallID] {
				out = append(out, m)
			}
		default:
			out = append(out, m)
		}
	}
	return out
}

// trimTail keeps at most max messages and starts the result at a user message
// so a tool exchange is never cut in half. A latest turn longer than max is
// kept whole. max <= 0 keeps everything.
func trimTail(messages []*schema.Message, max int) []*schema.Message {
	cut := 0
	if max > 0 && len(messages) > max {
		cut = len(messages) - max
	}
	start := cut
	for start < len(messages) && messages[start].Role != schema.User {
		start++
	}
	if start == len(messages) {
		start = cut
		for start > 0 && messages[start].Role != schema.User {
			start--
		}
	}
	result := make([]*schema.Message, len(messages)-start)
	copy(result, messages[start:])
	return result
}
