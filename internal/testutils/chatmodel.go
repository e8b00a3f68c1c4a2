// Package testutils holds fakes shared by package tests.
package testutils

import (
	"context"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ReplyFunc produces the model answer for the n-th call (0 based).
type ReplyFunc func(ctx context.Context, n int, input []*schema.Message) (*schema.Message, error)

// ChatModel is a scripted eino ToolCallingChatModel. Stream splits the reply
// content into word chunks and sends tool calls in the final chunk.
type ChatModel struct {
	Reply ReplyFunc
	// Delay is waited before answering, honouring ctx cancellation.
	Delay time.Duration

	mu     sync.Mutex
	calls  [][]*schema.Message
	tools  []*schema.ToolInfo
	parent *ChatModel
}

// Text replies with the given contents in order, repeating the last one.
func Text(replies ...string) *ChatModel {
	msgs := make([]*schema.Message, len(replies))
	for i, r := range replies {
		msgs[i] = schema.AssistantMessage(r, nil)
	}
	return Script(msgs...)
}

// Script replies with the given messages in order, repeating the last one.
func Script(replies ...*schema.Message) *ChatModel {
	return &ChatModel{Reply: func(_ context.Context, n int, _ []*schema.Message) (*schema.Message, error) {
		if n >= len(replies) {
			n = len(replies) - 1
		}
		cp := *replies[n]
		cp.ToolCalls = append([]schema.ToolCall(nil), cp.ToolCalls...)
		return &cp, nil
	}}
}

// Failing always returns err.
func Failing(err error) *ChatModel {
	return &ChatModel{Reply: func(context.Context, int, []*schema.Message) (*schema.Message, error) {
		return nil, err
	}}
}

// ToolCall builds an assistant message requesting one tool per name.
func ToolCall(names ...string) *schema.Message {
	calls := make([]schema.ToolCall, len(names))
	for i, n := range names {
		calls[i] = schema.ToolCall{
			Type:     "function",
			Function: schema.FunctionCall{Name: n, Arguments: "{}"},
		}
	}
	return schema.AssistantMessage("", calls)
}

func (m *ChatModel) root() *ChatModel {
	if m.parent != nil {
		return m.parent
	}
	return m
}

func (m *ChatModel) next(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
	r := m.root()
	r.mu.Lock()
	n := len(r.calls)
	r.calls = append(r.calls, input)
	r.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.Reply(ctx, n, input)
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return m.next(ctx, input)
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.next(ctx, input)
	if err != nil {
		return nil, err
	}
	var chunks []*schema.Message
	for _, w := range strings.SplitAfter(out.Content, " ") {
		if w != "" {
			chunks = append(chunks, schema.AssistantMessage(w, nil))
		}
	}
	last := schema.AssistantMessage("", out.ToolCalls)
	last.ResponseMeta = out.ResponseMeta
	chunks = append(chunks, last)
	return schema.StreamReaderFromArray(chunks), nil
}

// WithTools returns a bound view sharing the call log of m.
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	r := m.root()
	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()
	return &ChatModel{parent: r}, nil
}

// BindTools records tools in place.
func (m *ChatModel) BindTools(tools []*schema.ToolInfo) error {
	r := m.root()
	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()
	return nil
}

// Calls returns the inputs of every call so far.
func (m *ChatModel) Calls() [][]*schema.Message {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]*schema.Message(nil), r.calls...)
}

// CallCount returns the number of calls so far.
func (m *ChatModel) CallCount() int {
	return len(m.Calls())
}

// BoundTools returns the tools passed to WithTools or BindTools.
func (m *ChatModel) BoundTools() []*schema.ToolInfo {
	r := m.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tools
}

var (
	_ einomodel.ToolCallingChatModel = (*ChatModel)(nil)
	_ einomodel.ChatModel            = (*ChatModel)(nil)
)
