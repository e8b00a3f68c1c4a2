package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// CheckpointStore persists the turns of a conversation thread. Implementations
// serialize access per thread id; the graph assumes one in-flight turn per thread.
type CheckpointStore interface {
	// Load returns the prior turns for the thread, or nil when none exist.
	Load(ctx context.Context, threadID string) ([]*schema.Message, error)

	// Save replaces the stored turns for the thread.
	Save(ctx context.Context, threadID string, messages []*schema.Message) error
}

// AuditEvent records a security-relevant side effect of a turn.
type AuditEvent struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"thread_id"`
	UserID    string            `json:"user_id"`
	Role      string            `json:"role"`
	Kind      string            `json:"kind"`
	Tool      string            `json:"tool,omitempty"`
	Outcome   string            `json:"outcome"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Audit event kinds.
const (
	AuditToolExecuted   = "tool_executed"
	AuditToolDenied     = "tool_denied"
	AuditInputBlocked   = "input_blocked"
	AuditOutputOverride = "output_overridden"
)

// AuditSink receives audit events. Writes are best-effort and not transactional
// with the rest of the turn.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}
