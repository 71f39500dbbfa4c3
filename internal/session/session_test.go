package session

import (
	"testing"
	"time"

	"github.com/mantonx/hlscore/internal/config"
	"github.com/mantonx/hlscore/internal/quality"
	"github.com/mantonx/hlscore/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, segDur float64) *Session {
	t.Helper()
	preset, err := quality.Lookup(quality.P720)
	require.NoError(t, err)
	return New("scene-1", preset, "/media/scene-1.mp4", t.TempDir(), 1280, 720, 120, segDur)
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Starting:   "starting",
		Active:     "active",
		Restarting: "restarting",
		Stopping:   "stopping",
		Stopped:    "stopped",
		Failed:     "failed",
		State(99):  "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestKeyString(t *testing.T) {
	k := Key{SceneID: "scene-1", Quality: quality.P720}
	assert.Equal(t, "scene-1:720p", k.String())
}

func TestSessionTouchUpdatesActivity(t *testing.T) {
	s := newTestSession(t, 2)
	s.lastActivity = time.Now().Add(-time.Hour)
	s.Touch()
	assert.Less(t, s.LastActivityAge(), time.Second)
}

func TestSessionSnapshotReflectsSegmentIndex(t *testing.T) {
	s := newTestSession(t, 2)
	s.setState(Active)
	s.Index.Mark(0, segment.Completed, nil)
	s.Index.Mark(1, segment.Transcoding, nil)

	snap := s.Snapshot()
	assert.Equal(t, "active", snap.State)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 1, snap.Transcoding)
}

func TestRecordFinalizedAdvancesOnlyContiguously(t *testing.T) {
	s := newTestSession(t, 2)
	s.generation = 1

	s.recordFinalized(1, 0)
	assert.Equal(t, 1, s.ProducedEnd())

	// out-of-order: segment 3 finalizes before segment 1, must not advance yet.
	s.recordFinalized(1, 3)
	assert.Equal(t, 1, s.ProducedEnd())

	s.recordFinalized(1, 1)
	assert.Equal(t, 2, s.ProducedEnd())
}

func TestRecordFinalizedIgnoresStaleGeneration(t *testing.T) {
	s := newTestSession(t, 2)
	s.generation = 2
	s.recordFinalized(1, 0) // gen 1 is stale, current is 2
	assert.Equal(t, 0, s.ProducedEnd())
}

func TestSegmentViewsReportsAllTracked(t *testing.T) {
	s := newTestSession(t, 2)
	s.Index.Mark(0, segment.Completed, nil)
	s.Index.Mark(1, segment.Failed, func(m *segment.Meta) { m.LastError = "boom" })

	views := s.SegmentViews()
	assert.Len(t, views, 2)
}

func TestManagerCanServeWindow(t *testing.T) {
	m := &Manager{cfg: config.SessionConfig{ReuseAheadGrace: 10 * time.Second}}
	s := newTestSession(t, 2)
	s.startSec = 0
	s.producedEnd = 5 // 5 segments * 2s = 10s produced

	assert.True(t, m.canServe(s, 4))   // within produced window
	assert.True(t, m.canServe(s, 18))  // within grace (10 + 10)
	assert.False(t, m.canServe(s, 25)) // beyond grace
	assert.False(t, m.canServe(s, -1)) // before session start

	s.setState(Failed)
	assert.False(t, m.canServe(s, 4))
}

func TestTimelineSeg(t *testing.T) {
	assert.Equal(t, 0, timelineSeg(0, 2))
	assert.Equal(t, 4, timelineSeg(9.9, 2))
	assert.Equal(t, 0, timelineSeg(5, 0))
}
