package directory

import (
	"context"
	"sync"
	"time"

	platformredis "lifeline/internal/platform/redis"
	"lifeline/pkg/clock"
)

// Presence tracks which donors currently hold a live connection. Presence is
// advisory: it decorates candidates so callers can prefer online donors, it
// never excludes anyone from matching.
type Presence interface {
	MarkOnline(ctx context.Context, userID string, ttl time.Duration) error
	MarkOffline(ctx context.Context, userID string) error
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// MemoryPresence is the single-process fallback used when Redis is not
// configured.
type MemoryPresence struct {
	mu      sync.Mutex
	expires map[string]time.Time
	clk     clock.Clock
}

func NewMemoryPresence(clk clock.Clock) *MemoryPresence {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryPresence{expires: make(map[string]time.Time), clk: clk}
}

func (p *MemoryPresence) MarkOnline(_ context.Context, userID string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expires[userID] = p.clk.Now().Add(ttl)
	return nil
}

func (p *MemoryPresence) MarkOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.expires, userID)
	return nil
}

func (p *MemoryPresence) Online(_ context.Context, userIDs []string) (map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clk.Now()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		deadline, ok := p.expires[id]
		if ok && now.Before(deadline) {
			out[id] = true
		} else {
			delete(p.expires, id)
		}
	}
	return out, nil
}

// RedisPresence stores one key per online donor with a TTL, so presence
// survives process restarts and is shared across replicas. A donor whose
// connection drops without a clean disconnect simply ages out.
type RedisPresence struct {
	client *platformredis.Client
}

func NewRedisPresence(client *platformredis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func presenceKey(userID string) string { return "presence:" + userID }

func (p *RedisPresence) MarkOnline(ctx context.Context, userID string, ttl time.Duration) error {
	return p.client.Set(ctx, presenceKey(userID), "1", ttl).Err()
}

func (p *RedisPresence) MarkOffline(ctx context.Context, userID string) error {
	return p.client.Del(ctx, presenceKey(userID)).Err()
}

func (p *RedisPresence) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}
	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v != nil {
			out[userIDs[i]] = true
		}
	}
	return out, nil
}
