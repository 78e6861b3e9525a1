package donation

import (
	"context"
	"sort"
	"sync"

	"lifeline/internal/domain"
	"lifeline/pkg/platform/sentinel"
)

// InMemoryStore keeps donations in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	donations map[string]*domain.Donation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{donations: make(map[string]*domain.Donation)}
}

func (s *InMemoryStore) Create(_ context.Context, donation *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.donations[donation.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *donation
	s.donations[donation.ID] = &cp
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, id string) (*domain.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.donations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemoryStore) ListByDonor(_ context.Context, donorID string) ([]*domain.Donation, error) {
	return s.list(func(d *domain.Donation) bool { return d.DonorID == donorID }), nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID string) ([]*domain.Donation, error) {
	return s.list(func(d *domain.Donation) bool { return requestID != "" && d.RequestID == requestID }), nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, id string, status domain.DonationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.donations[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Status = status
	return nil
}

func (s *InMemoryStore) list(keep func(*domain.Donation) bool) []*domain.Donation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Donation
	for _, d := range s.donations {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	// Soonest appointment first, id tiebreak for stable output.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
