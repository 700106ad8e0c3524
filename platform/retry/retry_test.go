package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm_assistant_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.Discard(), "flaky", 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoWrapsLastError(t *testing.T) {
	sentinel := errors.New("still down")
	calls := 0
	err := Do(context.Background(), nil, "down", 2, time.Millisecond, func(context.Context) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, nil, "cancelled", 3, time.Millisecond, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
