package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePruner struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakePruner) PruneProcessedMessages(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	return 3, f.err
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestWorkerSweepsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &fakePruner{}
	w := NewWorker(p, 10*time.Millisecond, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return p.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 24*time.Hour, p.calls[0])
}

func TestSweepToleratesErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("database is locked")}
	w := NewWorker(p, time.Hour, time.Hour)

	assert.NotPanics(t, func() { w.Sweep(context.Background()) })
	assert.Equal(t, 1, p.count())
}
