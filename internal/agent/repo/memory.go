package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/lending-agent/internal/agent/model"
)

// MemoryCheckpointStore is an in-process CheckpointStore for tests and local runs.
type MemoryCheckpointStore struct {
	mu      sync.RWMutex
	threads map[string][]*schema.Message
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{threads: make(map[string][]*schema.Message)}
}

func (s *MemoryCheckpointStore) Load(_ context.Context, threadID string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	return cloneMessages(msgs), nil
}

func (s *MemoryCheckpointStore) Save(_ context.Context, threadID string, messages []*schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = cloneMessages(messages)
	return nil
}

func cloneMessages(in []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(in))
	for i, m := range in {
		cp := *m
		out[i] = &cp
	}
	return out
}

var _ model.CheckpointStore = (*MemoryCheckpointStore)(nil)
