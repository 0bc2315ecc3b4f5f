package store

import (
	"context"
	"sync"

	"github.com/selfmodel/mirror/internal/domain"
)

// MemoryEventStore keeps events in an in-process slice. Used for tests and
// ephemeral runs; the ordering and append-only guarantees match the durable
// backends.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) Append(_ context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = int64(len(s.events)) + 1
	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryEventStore) ReadAll(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryEventStore) ReadFrom(_ context.Context, afterID int64) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for i := range s.events {
		if s.events[i].ID > afterID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *MemoryEventStore) Last(_ context.Context) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) == 0 {
		return nil, ErrNotFound
	}
	e := s.events[len(s.events)-1]
	return &e, nil
}

func (s *MemoryEventStore) Ping(_ context.Context) error { return nil }

func (s *MemoryEventStore) Close() error { return nil }
