package segment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkThenGet(t *testing.T) {
	ix := New()
	ix.Mark(3, Completed, func(m *Meta) { m.CompletedAt = time.Now() })
	meta, ok := ix.Get(3)
	require.True(t, ok)
	assert.Equal(t, Completed, meta.State)
	assert.False(t, meta.CompletedAt.IsZero())
}

func TestWaitForResolvesOnMark(t *testing.T) {
	ix := New()
	var wg sync.WaitGroup
	wg.Add(1)
	var result WaitResult
	go func() {
		defer wg.Done()
		result = ix.WaitFor(context.Background(), 5, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	ix.Mark(5, Completed, nil)
	wg.Wait()
	assert.Equal(t, ResultCompleted, result)
}

func TestWaitForTimesOut(t *testing.T) {
	ix := New()
	result := ix.WaitFor(context.Background(), 1, 20*time.Millisecond)
	assert.Equal(t, ResultTimeout, result)
}

func TestWaitForCancellation(t *testing.T) {
	ix := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan WaitResult, 1)
	go func() { done <- ix.WaitFor(ctx, 9, time.Second) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.Equal(t, ResultCancelled, <-done)
}

func TestWaitForMultipleWaitersAllWake(t *testing.T) {
	ix := New()
	const n = 10
	results := make(chan WaitResult, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- ix.WaitFor(context.Background(), 7, time.Second)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	ix.Mark(7, Failed, func(m *Meta) { m.LastError = "boom" })
	wg.Wait()
	close(results)
	for r := range results {
		assert.Equal(t, ResultFailed, r)
	}
}

func TestCloseCancelsOutstandingWaiters(t *testing.T) {
	ix := New()
	done := make(chan WaitResult, 1)
	go func() { done <- ix.WaitFor(context.Background(), 2, time.Second) }()
	time.Sleep(10 * time.Millisecond)
	ix.Close()
	assert.Equal(t, ResultSessionGone, <-done)
}

func TestSnapshotCounts(t *testing.T) {
	ix := New()
	ix.Mark(0, Completed, nil)
	ix.Mark(1, Completed, nil)
	ix.Mark(2, Transcoding, nil)
	ix.Mark(3, Failed, nil)
	s := ix.Snapshot()
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Transcoding)
	assert.Equal(t, 1, s.Failed)
}
