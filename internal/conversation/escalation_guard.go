package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EscalationGuard decides whether a (username, ticket) pair may be escalated
// again. Allow records the escalation when it returns true.
type EscalationGuard interface {
	Allow(ctx context.Context, username, ticketID string) (bool, error)
}

func guardKey(username, ticketID string) string {
	return "supportbot:escalated:" + strings.ToLower(username) + ":" + ticketID
}

// MemoryEscalationGuard suppresses repeats inside a window for one process.
type MemoryEscalationGuard struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryEscalationGuard(window time.Duration) *MemoryEscalationGuard {
	return &MemoryEscalationGuard{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (g *MemoryEscalationGuard) Allow(_ context.Context, username, ticketID string) (bool, error) {
	key := guardKey(username, ticketID)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = now
	return true, nil
}

// RedisEscalationGuard shares the dedupe window across instances.
type RedisEscalationGuard struct {
	client redis.UniversalClient
	window time.Duration
}

func NewRedisEscalationGuard(client redis.UniversalClient, window time.Duration) *RedisEscalationGuard {
	if client == nil {
		panic("conversation: redis client required")
	}
	return &RedisEscalationGuard{client: client, window: window}
}

func (g *RedisEscalationGuard) Allow(ctx context.Context, username, ticketID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(username, ticketID), time.Now().UTC().Format(time.RFC3339), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("conversation: escalation guard: %w", err)
	}
	return ok, nil
}
