package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/mantonx/hlscore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSceneCacheMissCallsResolveOnce(t *testing.T) {
	calls := 0
	resolve := func(ctx context.Context, sceneID string) (string, []core.StreamVariant, error) {
		calls++
		return "/bin/echo", nil, nil // not a real media file; probe() will error, exercised separately
	}
	src := New("/no/such/ffprobe", resolve, time.Minute)

	_, err := src.ResolveScene(context.Background(), "scene-1")
	assert.Error(t, err) // ffprobe path is bogus
	assert.Equal(t, 1, calls)
}

func TestResolveSceneCacheHitSkipsResolve(t *testing.T) {
	src := New("/no/such/ffprobe", nil, time.Minute)
	src.cache["scene-1"] = cacheEntry{
		info:      core.SceneInfo{DurationSec: 42, SourceHeight: 1080},
		expiresAt: time.Now().Add(time.Minute),
	}

	info, err := src.ResolveScene(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, info.DurationSec)
	assert.Equal(t, 1080, info.SourceHeight)
}

func TestResolveSceneCacheExpires(t *testing.T) {
	src := New("/no/such/ffprobe", func(ctx context.Context, id string) (string, []core.StreamVariant, error) {
		return "", nil, assertErr
	}, time.Minute)
	src.cache["scene-1"] = cacheEntry{
		info:      core.SceneInfo{DurationSec: 1},
		expiresAt: time.Now().Add(-time.Second), // already expired
	}

	_, err := src.ResolveScene(context.Background(), "scene-1")
	assert.ErrorIs(t, err, assertErr)
}

var assertErr = assertError("resolve failed")

type assertError string

func (e assertError) Error() string { return string(e) }
