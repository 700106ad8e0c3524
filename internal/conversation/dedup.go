package conversation

import (
	"context"
	"sync"
	"time"

	"crm_assistant_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "assistant:seen:"

// Deduper decides whether an inbound message id was already processed.
// FirstSeen marks id and reports true only for the first caller.
type Deduper interface {
	FirstSeen(ctx context.Context, messageID string) bool
}

// Window is an approximate in-memory dedup set. Once it grows past capacity
// it is cleared entirely, so a redelivery arriving after a clear is processed again.
type Window struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	capacity int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1000
	}
	return &Window{seen: make(map[string]struct{}, capacity), capacity: capacity}
}

func (w *Window) FirstSeen(_ context.Context, messageID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[messageID]; ok {
		return false
	}
	w.seen[messageID] = struct{}{}
	if len(w.seen) > w.capacity {
		clear(w.seen)
	}
	return true
}

// Len returns the number of ids currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// RedisWindow shares the dedup set across instances with SET NX and a TTL.
// When Redis is unreachable it falls back to a local Window.
type RedisWindow struct {
	client   *redis.Client
	ttl      time.Duration
	fallback *Window
	log      *logger.Logger
}

func NewRedisWindow(client *redis.Client, ttl time.Duration, capacity int, log *logger.Logger) *RedisWindow {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisWindow{client: client, ttl: ttl, fallback: NewWindow(capacity), log: log}
}

func (w *RedisWindow) FirstSeen(ctx context.Context, messageID string) bool {
	ok, err := w.client.SetNX(ctx, dedupKeyPrefix+messageID, 1, w.ttl).Result()
	if err != nil {
		w.log.Warn("dedup store unavailable, using local window", "error", err)
		return w.fallback.FirstSeen(ctx, messageID)
	}
	return ok
}
