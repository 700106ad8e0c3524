package consent

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_assistant_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	mu      sync.Mutex
	appends map[string]int
	loadErr error
	failing bool
}

func newCountingStore() *countingStore {
	return &countingStore{appends: make(map[string]int)}
}

func (s *countingStore) LoadAll(context.Context) ([]string, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return []string{"573001112233"}, nil
}

func (s *countingStore) Append(_ context.Context, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends[userID]++
	if s.failing {
		return errors.New("store down")
	}
	return nil
}

func TestGateTokens(t *testing.T) {
	cases := []struct {
		text    string
		outcome string
	}{
		{"sí", OutcomeGranted},
		{"  SI ", OutcomeGranted},
		{"Acepto", OutcomeGranted},
		{"ok acepto", OutcomeGranted},
		{"yes", OutcomeGranted},
		{"no", OutcomeRefused},
		{"No Acepto", OutcomeRefused},
		{"hola", OutcomeRequested},
		{"si, claro", OutcomeRequested},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			g := NewGate(nil, logger.Discard())
			d := g.Check(context.Background(), "u1", tc.text)
			assert.True(t, d.Handled)
			assert.Equal(t, tc.outcome, d.Outcome)
			assert.Equal(t, tc.outcome == OutcomeGranted, g.Has("u1"))
		})
	}
}

func TestGateRecordsConsentOnce(t *testing.T) {
	store := newCountingStore()
	g := NewGate(store, logger.Discard())
	ctx := context.Background()

	first := g.Check(ctx, "u1", "sí")
	require.Equal(t, OutcomeGranted, first.Outcome)
	assert.Equal(t, MsgGranted, first.Reply)

	second := g.Check(ctx, "u1", "sí")
	assert.False(t, second.Handled)

	assert.Equal(t, 1, store.appends["u1"])
}

func TestGateKeepsConsentWhenStoreFails(t *testing.T) {
	store := newCountingStore()
	store.failing = true
	g := NewGate(store, logger.Discard())

	d := g.Check(context.Background(), "u1", "acepto")

	assert.Equal(t, OutcomeGranted, d.Outcome)
	assert.True(t, g.Has("u1"))
	assert.Equal(t, 2, store.appends["u1"])
}

func TestGateLogsConsentStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	store := newCountingStore()
	store.failing = true
	g := NewGate(store, logger.NewWithWriter("production", &buf))

	g.Check(context.Background(), "u1", "acepto")

	assert.Contains(t, buf.String(), `"msg":"database_error"`)
	assert.Contains(t, buf.String(), `"operation":"consent_append"`)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

func TestGateLoad(t *testing.T) {
	g := NewGate(newCountingStore(), logger.Discard())
	n, err := g.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, g.Check(context.Background(), "573001112233", "hola").Handled)

	broken := newCountingStore()
	broken.loadErr = errors.New("boom")
	_, err = NewGate(broken, logger.Discard()).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStoreIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "a", time.Now()))
	require.NoError(t, s.Append(ctx, "a", time.Now()))
	require.NoError(t, s.Append(ctx, "b", time.Now()))

	users, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, users)
}
