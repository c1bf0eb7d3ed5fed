package locker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestLocalSerializesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "account:1")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if l.Len() != 0 {
		t.Fatalf("expected lock table to drain, got %d keys", l.Len())
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "account:1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx, "account:2")
	if err != nil {
		t.Fatalf("Acquire(other key) error = %v", err)
	}
	r2()
}

func TestLocalAcquireHonorsContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "account:1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "account:1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	release()
	release() // second call is a no-op
	if l.Len() != 0 {
		t.Fatalf("expected lock table to drain, got %d keys", l.Len())
	}
}
