package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"kwik.app/dispatch/internal/model"
)

// MemoryCallStore keeps calls in process memory. It backs the demo dashboard
// when no database is configured.
type MemoryCallStore struct {
	mu    sync.RWMutex
	calls map[string]model.EmergencyCall
}

func NewMemoryCallStore(seed ...model.EmergencyCall) *MemoryCallStore {
	s := &MemoryCallStore{calls: make(map[string]model.EmergencyCall, len(seed))}
	for _, c := range seed {
		s.calls[c.ID] = cloneCall(c)
	}
	return s
}

func (s *MemoryCallStore) Save(_ context.Context, call *model.EmergencyCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneCall(*call)
	if existing, ok := s.calls[call.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.calls[call.ID] = stored
	return nil
}

func (s *MemoryCallStore) GetByID(_ context.Context, id string) (*model.EmergencyCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneCall(call)
	return &out, nil
}

func (s *MemoryCallStore) List(_ context.Context, limit int) ([]model.EmergencyCall, error) {
	s.mu.RLock()
	out := make([]model.EmergencyCall, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, cloneCall(c))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryCallStore) UpdateStatus(_ context.Context, id string, status model.Status, callStatus model.CallStatus, at time.Time) (*model.EmergencyCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	call.Status = status
	call.CallStatus = callStatus
	call.UpdatedAt = at
	s.calls[id] = call

	out := cloneCall(call)
	return &out, nil
}

func cloneCall(c model.EmergencyCall) model.EmergencyCall {
	c.ImmediateThreats = slices.Clone(c.ImmediateThreats)
	return c
}
