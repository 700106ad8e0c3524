package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crm_assistant_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestWindowRejectsDuplicates(t *testing.T) {
	w := NewWindow(10)
	ctx := context.Background()

	assert.True(t, w.FirstSeen(ctx, "wamid.1"))
	assert.False(t, w.FirstSeen(ctx, "wamid.1"))
	assert.True(t, w.FirstSeen(ctx, "wamid.2"))
}

func TestWindowClearsPastCapacity(t *testing.T) {
	w := NewWindow(2)
	ctx := context.Background()

	w.FirstSeen(ctx, "a")
	w.FirstSeen(ctx, "b")
	assert.Equal(t, 2, w.Len())

	w.FirstSeen(ctx, "c")
	assert.Equal(t, 0, w.Len())
	assert.True(t, w.FirstSeen(ctx, "a"))
}

func TestWindowConcurrentFirstSeen(t *testing.T) {
	w := NewWindow(100)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.FirstSeen(context.Background(), "same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	w := NewRedisWindow(client, time.Hour, 10, logger.Discard())
	ctx := context.Background()

	assert.True(t, w.FirstSeen(ctx, "wamid.9"))
	assert.False(t, w.FirstSeen(ctx, "wamid.9"))
	assert.True(t, mr.Exists(dedupKeyPrefix+"wamid.9"))

	mr.FastForward(2 * time.Hour)
	assert.True(t, w.FirstSeen(ctx, "wamid.9"))
}

func TestRedisWindowFallsBackWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	w := NewRedisWindow(client, time.Hour, 10, logger.Discard())
	ctx := context.Background()

	assert.True(t, w.FirstSeen(ctx, "x"))
	assert.False(t, w.FirstSeen(ctx, "x"))
}

func TestSessionsSerializePerUser(t *testing.T) {
	s := NewSessions()

	sess := s.Acquire("u1")
	sess.Commit([]*genai.Content{genai.NewContentFromText("hola", genai.RoleUser)})

	acquired := make(chan struct{})
	go func() {
		other := s.Acquire("u1")
		defer other.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the session is held")
	case <-time.After(50 * time.Millisecond):
	}

	// A different user is not blocked.
	u2 := s.Acquire("u2")
	u2.Release()

	sess.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed")
	}

	again := s.Acquire("u1")
	defer again.Release()
	require.Len(t, again.History(), 1)
	again.Reset()
	assert.Empty(t, again.History())
	assert.Equal(t, 2, s.Len())
}
