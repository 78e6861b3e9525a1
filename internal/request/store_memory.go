package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifeline/internal/domain"
	"lifeline/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in a map guarded by a RWMutex. It favors
// clarity over performance and doubles as the reference implementation for
// the optimistic-concurrency contract the Postgres store must honor.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*domain.BloodRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[string]*domain.BloodRequest)}
}

func (s *InMemoryStore) Create(_ context.Context, req *domain.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	req.Version = 1
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, id string) (*domain.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, req *domain.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != req.Version {
		return sentinel.ErrConflict
	}
	req.Version++
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter domain.RequestFilter) ([]*domain.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.BloodRequest
	for _, req := range s.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.BloodType != "" && req.BloodType != filter.BloodType {
			continue
		}
		if filter.Urgency != "" && req.Urgency != filter.Urgency {
			continue
		}
		if filter.RecipientID != "" && req.RecipientID != filter.RecipientID {
			continue
		}
		out = append(out, req.Clone())
	}
	// Newest first, id tiebreak for stable output.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.BloodRequest
	for _, req := range s.requests {
		if req.Expired(now) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
