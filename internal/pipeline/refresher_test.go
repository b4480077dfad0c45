package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls  atomic.Int32
	target atomic.Int32
	err    error
}

func (c *countingRefresher) Refresh(_ context.Context, target int) error {
	c.calls.Add(1)
	c.target.Store(int32(target))
	return c.err
}

func TestRefresher_RunLoop(t *testing.T) {
	rec := &countingRefresher{err: errors.New("upstream down")}
	r := NewRefresher(rec, 150, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunLoop(ctx) }()

	require.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not stop")
	}
	assert.EqualValues(t, 150, rec.target.Load())
}
