package retry

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_SubmitRunsTask(t *testing.T) {
	p := NewPool(2, 4, discardLogger())
	p.Start(context.Background())
	defer p.Stop(time.Second)

	var ran atomic.Bool
	done := make(chan struct{})
	p.Submit(func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run in time")
	}

	assert.True(t, ran.Load())
}

func TestPool_SubmitDropsWhenSaturated(t *testing.T) {
	p := NewPool(1, 1, discardLogger())
	// Not started: workers never drain, so the one-slot queue is full after
	// the first task.
	ok1 := p.Submit(func(ctx context.Context) {})
	ok2 := p.Submit(func(ctx context.Context) {})
	ok3 := p.Submit(func(ctx context.Context) {})

	assert.True(t, ok1)
	assert.False(t, ok2)
	assert.False(t, ok3)
}

func TestPool_StopDrainsGracefully(t *testing.T) {
	p := NewPool(1, 1, discardLogger())
	p.Start(context.Background())

	var completed atomic.Bool
	p.Submit(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
	})

	p.Stop(time.Second)
	assert.True(t, completed.Load())
}
