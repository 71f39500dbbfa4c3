package session

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/hlscore/internal/segment"
	"github.com/stretchr/testify/assert"
)

func TestMarkNextTranscodingRespectsSceneBound(t *testing.T) {
	s := newTestSession(t, 2) // 120s / 2s => 60 segments
	s.generation = 1

	s.markNextTranscoding(1, 59)
	meta, ok := s.Index.Get(59)
	assert.True(t, ok)
	assert.Equal(t, segment.Transcoding, meta.State)

	s.markNextTranscoding(1, 60) // past the last segment, never marked
	_, ok = s.Index.Get(60)
	assert.False(t, ok)
}

func TestMarkNextTranscodingIgnoresStaleGeneration(t *testing.T) {
	s := newTestSession(t, 2)
	s.generation = 2

	s.markNextTranscoding(1, 0)
	_, ok := s.Index.Get(0)
	assert.False(t, ok, "a stale generation's callback must not create an entry")
}

func TestSweepOnceFailsTimedOutSegmentWithoutRetryWhenExhausted(t *testing.T) {
	s := newTestSession(t, 2)
	s.Index.Mark(3, segment.Transcoding, func(m *segment.Meta) {
		m.StartedAt = time.Now().Add(-time.Hour)
		m.Retries = 2
	})

	deps := Deps{SegmentTimeout: time.Millisecond, MaxRetries: 2, Log: hclog.NewNullLogger()}
	restarted := s.sweepOnce(deps)

	meta, ok := s.Index.Get(3)
	assert.True(t, ok)
	assert.Equal(t, segment.Failed, meta.State)
	assert.Equal(t, 3, meta.Retries)
	assert.False(t, restarted, "sweepOnce reports a restart only when retries remain")
}

func TestSweepOnceIgnoresSegmentsStillWithinTimeout(t *testing.T) {
	s := newTestSession(t, 2)
	s.Index.Mark(0, segment.Transcoding, func(m *segment.Meta) {
		m.StartedAt = time.Now()
	})

	deps := Deps{SegmentTimeout: time.Hour, MaxRetries: 3, Log: hclog.NewNullLogger()}
	assert.False(t, s.sweepOnce(deps))

	meta, ok := s.Index.Get(0)
	assert.True(t, ok)
	assert.Equal(t, segment.Transcoding, meta.State)
}
