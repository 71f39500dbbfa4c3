// Package segment implements SegmentIndex: the per-session, thread-safe map
// from timeline-absolute segment number to its transcoding state, with
// waiter notification grounded on go-vod's per-chunk notification-channel
// pattern (transcoder-stream.go's chunk.notifs / waitForChunk).
package segment

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle state of a single segment.
type State int

const (
	Waiting State = iota
	Transcoding
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Transcoding:
		return "transcoding"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// WaitResult is the outcome of a WaitFor call.
type WaitResult int

const (
	ResultCompleted WaitResult = iota
	ResultFailed
	ResultTimeout
	ResultCancelled
	ResultSessionGone
)

// Meta is the metadata tracked for a single segment.
type Meta struct {
	State       State
	StartedAt   time.Time
	CompletedAt time.Time
	Retries     int
	LastError   string
}

// Summary is the aggregate view returned by Snapshot, matching the fields
// of the /session/:key/status admin endpoint (§6).
type Summary struct {
	Completed   int
	Transcoding int
	Failed      int
	Waiting     int
}

type entry struct {
	meta   Meta
	notifs []chan struct{}
}

// Index is a concurrent map from segment number to Meta. Every state
// change wakes every current waiter on that segment exactly once.
type Index struct {
	mu      sync.Mutex
	entries map[int]*entry
	closed  bool // true once the owning session has been torn down
}

// New constructs an empty Index.
func New() *Index {
	return &Index{entries: make(map[int]*entry)}
}

// Mark atomically updates (or creates) the metadata for segment n and
// wakes any waiters currently blocked on it.
func (ix *Index) Mark(n int, state State, mutate func(*Meta)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[n]
	if !ok {
		e = &entry{}
		ix.entries[n] = e
	}
	e.meta.State = state
	if mutate != nil {
		mutate(&e.meta)
	}
	ix.wake(e)
}

// Get returns a copy of segment n's metadata, and whether it exists.
func (ix *Index) Get(n int) (Meta, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[n]
	if !ok {
		return Meta{}, false
	}
	return e.meta, true
}

// WaitFor blocks until segment n reaches a terminal state (Completed or
// Failed), the deadline elapses, the context is cancelled, or the index is
// closed (session torn down). It never holds the index lock while blocked.
func (ix *Index) WaitFor(ctx context.Context, n int, deadline time.Duration) WaitResult {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return ResultSessionGone
	}
	e, ok := ix.entries[n]
	if !ok {
		e = &entry{meta: Meta{State: Waiting, StartedAt: time.Now()}}
		ix.entries[n] = e
	}
	if res, done := terminalResult(e.meta.State); done {
		ix.mu.Unlock()
		return res
	}
	ch := make(chan struct{})
	e.notifs = append(e.notifs, ch)
	ix.mu.Unlock()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ch:
			ix.mu.Lock()
			if ix.closed {
				ix.mu.Unlock()
				return ResultSessionGone
			}
			cur, ok := ix.entries[n]
			if !ok {
				ix.mu.Unlock()
				return ResultTimeout
			}
			if res, done := terminalResult(cur.meta.State); done {
				ix.mu.Unlock()
				return res
			}
			// Woken by a non-terminal change (e.g. Waiting -> Transcoding):
			// re-register and keep waiting under the same deadline.
			ch = make(chan struct{})
			cur.notifs = append(cur.notifs, ch)
			ix.mu.Unlock()
		case <-timer.C:
			ix.removeWaiter(n, ch)
			return ResultTimeout
		case <-ctx.Done():
			ix.removeWaiter(n, ch)
			return ResultCancelled
		}
	}
}

func terminalResult(s State) (WaitResult, bool) {
	switch s {
	case Completed:
		return ResultCompleted, true
	case Failed:
		return ResultFailed, true
	default:
		return ResultTimeout, false
	}
}

func (ix *Index) removeWaiter(n int, ch chan struct{}) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[n]
	if !ok {
		return
	}
	for i, c := range e.notifs {
		if c == ch {
			e.notifs = append(e.notifs[:i], e.notifs[i+1:]...)
			break
		}
	}
}

// wake closes and clears every pending notification channel for an entry.
// Must be called with ix.mu held.
func (ix *Index) wake(e *entry) {
	for _, ch := range e.notifs {
		close(ch)
	}
	e.notifs = nil
}

// Close marks the index as belonging to a torn-down session: all current
// and future waiters resolve with ResultSessionGone. Matches §5's
// cancellation requirement that teardown cancels all outstanding waiters.
func (ix *Index) Close() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	for _, e := range ix.entries {
		ix.wake(e)
	}
}

// Snapshot returns counts of segments by state.
func (ix *Index) Snapshot() Summary {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var s Summary
	for _, e := range ix.entries {
		switch e.meta.State {
		case Completed:
			s.Completed++
		case Transcoding:
			s.Transcoding++
		case Failed:
			s.Failed++
		case Waiting:
			s.Waiting++
		}
	}
	return s
}

// Segments returns a snapshot of every tracked segment number and its
// metadata, for the /session/:key/segments admin endpoint. The result is a
// map, so iteration order is not defined.
func (ix *Index) Segments() map[int]Meta {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[int]Meta, len(ix.entries))
	for n, e := range ix.entries {
		out[n] = e.meta
	}
	return out
}
