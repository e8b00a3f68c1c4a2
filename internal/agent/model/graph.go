package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Tier names a model backend with its own cost/latency profile.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierFast || t == TierCapable
}

// Caller identifies who sent the message. It is supplied by the transport and
// never derived inside the graph.
type Caller struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	// ToolRoles overrides the registry's allowed roles per tool for this session.
	ToolRoles map[string][]string `json:"tool_roles,omitempty"`
}

// TurnInput represents one inbound message for a thread.
type TurnInput struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
	Caller   Caller `json:"caller"`
}

// TurnState stores per-invocation state threaded through the graph.
// Concurrency model:
//   - A TurnState is created for exactly one turn and owned by it.
//   - Nodes run strictly one after another, so fields are never accessed
//     concurrently; no mutex is required.
//   - Nodes do not write fields directly. They return a Patch which the engine
//     merges after the node finishes.
type TurnState struct {
	ThreadID      string
	Caller        Caller
	Messages      []*schema.Message
	ModelTier     Tier
	SafetyBlocked bool
	Escalated     bool

	// OutputStart is the index in Messages of the first message produced by
	// this turn (the user message sits right before it).
	OutputStart int
	ToolRounds  int
	ToolCallSeq int
	Path        []string

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64

	events Emitter
}

// NewTurnState seeds a state with prior turns and appends the user message.
func NewTurnState(in TurnInput, history []*schema.Message) *TurnState {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, schema.UserMessage(in.Query))
	return &TurnState{
		ThreadID:    in.ThreadID,
		Caller:      in.Caller,
		Messages:    msgs,
		OutputStart: len(msgs),
	}
}

// WithEmitter attaches the event sink for this turn.
func (s *TurnState) WithEmitter(e Emitter) *TurnState {
	s.events = e
	return s
}

// Emit forwards ev to the turn's emitter, if any.
func (s *TurnState) Emit(ev Event) {
	if s.events != nil {
		s.events.Emit(ev)
	}
}

// Output returns the messages produced by this turn.
func (s *TurnState) Output() []*schema.Message {
	if s.OutputStart > len(s.Messages) {
		return nil
	}
	return s.Messages[s.OutputStart:]
}

// Last returns the most recent message or nil.
func (s *TurnState) Last() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// PendingToolCalls returns the tool calls of the last message when it is an
// assistant message awaiting execution.
func (s *TurnState) PendingToolCalls() []schema.ToolCall {
	last := s.Last()
	if last == nil || last.Role != schema.Assistant {
		return nil
	}
	return last.ToolCalls
}

// UserText returns the content of the latest user message.
func (s *TurnState) UserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

// Response returns the latest assistant message produced by this turn.
func (s *TurnState) Response() *schema.Message {
	out := s.Output()
	for i := len(out) - 1; i >= 0; i-- {
		if m := out[i]; m != nil && m.Role == schema.Assistant {
			return m
		}
	}
	return nil
}

// FinalText returns the text of the turn's final assistant message.
func (s *TurnState) FinalText() string {
	if m := s.Response(); m != nil {
		return strings.TrimSpace(m.Content)
	}
	return ""
}

// Patch is the partial state update returned by a node.
type Patch struct {
	Messages []*schema.Message
	// ReplaceResponse swaps the content of the turn's last assistant message.
	ReplaceResponse *string
	ModelTier       Tier
	SafetyBlocked   bool
	Escalated       bool
	ToolRounds      int
	ToolCallSeq     int
	CostUSD         float64
}

// Apply merges p into the state. Flags only ever move from false to true.
func (s *TurnState) Apply(p Patch) {
	s.Messages = append(s.Messages, p.Messages...)
	if p.ReplaceResponse != nil {
		if m := s.Response(); m != nil {
			m.Content = *p.ReplaceResponse
		} else {
			s.Messages = append(s.Messages, schema.AssistantMessage(*p.ReplaceResponse, nil))
		}
	}
	if p.ModelTier.Valid() {
		s.ModelTier = p.ModelTier
	}
	if p.SafetyBlocked {
		s.SafetyBlocked = true
	}
	if p.Escalated {
		s.Escalated = true
	}
	s.ToolRounds += p.ToolRounds
	if p.ToolCallSeq > s.ToolCallSeq {
		s.ToolCallSeq = p.ToolCallSeq
	}
	s.TotalCostUSD += p.CostUSD
}

// ToolCall is a requested tool invocation.
type ToolCall struct {
	Name string
	Args string
}

// ToolAuthorizationResult is the gateway verdict for one call.
type ToolAuthorizationResult struct {
	Tool    string
	Allowed bool
	Reason  string
}

// SafetyCheckResult is the verdict of a content safety check.
type SafetyCheckResult struct {
	IsSafe              bool     `json:"is_safe"`
	ViolationCategories []string `json:"violation_categories,omitempty"`
	Explanation         string   `json:"explanation,omitempty"`
}
