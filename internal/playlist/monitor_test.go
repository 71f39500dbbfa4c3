package playlist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/hlscore/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func TestMonitorFinalizesOnlyWhenNextFileAppears(t *testing.T) {
	dir := t.TempDir()
	idx := segment.New()
	mon := New(dir, dir, 0, idx, hclog.NewNullLogger())
	mon.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	writeFile(t, dir, "segment_000.ts", 100)
	time.Sleep(50 * time.Millisecond)
	_, ok := idx.Get(0)
	assert.False(t, ok, "segment 0 must not finalize on first write alone")

	writeFile(t, dir, "segment_001.ts", 100)
	time.Sleep(100 * time.Millisecond)

	meta, ok := idx.Get(0)
	require.True(t, ok)
	assert.Equal(t, segment.Completed, meta.State)
	_, err := os.Stat(filepath.Join(dir, "segment_000.ts"))
	assert.NoError(t, err)
}

func TestMonitorAppliesTimelineOffset(t *testing.T) {
	dir := t.TempDir()
	idx := segment.New()
	mon := New(dir, dir, 100, idx, hclog.NewNullLogger())
	mon.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	writeFile(t, dir, "segment_000.ts", 50)
	writeFile(t, dir, "segment_001.ts", 50)
	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(filepath.Join(dir, "segment_100.ts"))
	assert.NoError(t, err, "runner-local segment 0 should be renamed to timeline-absolute 100")

	meta, ok := idx.Get(100)
	require.True(t, ok)
	assert.Equal(t, segment.Completed, meta.State)
}

func TestMonitorRenamesAcrossGenerationDirIntoSharedFinalDir(t *testing.T) {
	finalDir := t.TempDir()
	genDir := t.TempDir()
	idx := segment.New()
	mon := New(genDir, finalDir, 50, idx, hclog.NewNullLogger())
	mon.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	writeFile(t, finalDir, "segment_000.ts", 50) // a prior generation's already-finalized segment
	writeFile(t, genDir, "segment_000.ts", 50)
	writeFile(t, genDir, "segment_001.ts", 50)
	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(filepath.Join(finalDir, "segment_050.ts"))
	assert.NoError(t, err, "new generation's segment 0 should land in finalDir as timeline-absolute 50")

	_, err = os.Stat(filepath.Join(finalDir, "segment_000.ts"))
	assert.NoError(t, err, "prior generation's final segment 0 must survive untouched")

	meta, ok := idx.Get(50)
	require.True(t, ok)
	assert.Equal(t, segment.Completed, meta.State)
}
