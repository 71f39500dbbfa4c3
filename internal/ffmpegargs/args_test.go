package ffmpegargs

import (
	"strings"
	"testing"

	"github.com/mantonx/hlscore/internal/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOfArg(args []string, target string) int {
	for i, a := range args {
		if a == target {
			return i
		}
	}
	return -1
}

func TestBuildDirectIsPassthroughCopy(t *testing.T) {
	preset, err := quality.Lookup(quality.Direct)
	require.NoError(t, err)

	args := Build(Request{
		InputPath: "/in.mkv", Preset: preset, SegmentDurSec: 2, OutputDir: "/out", StartSeg: 0,
	})
	idx := indexOfArg(args, "-c")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "copy", args[idx+1])
}

func TestBuildTranscodeIncludesScaleAndCRF(t *testing.T) {
	preset, err := quality.Lookup(quality.P720)
	require.NoError(t, err)

	args := Build(Request{
		InputPath: "/in.mkv", Preset: preset, SegmentDurSec: 2, OutputDir: "/out", StartSeg: 5, FrameRate: 30,
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "scale=1280:720")
	assert.Contains(t, joined, "libx264")

	crfIdx := indexOfArg(args, "-crf")
	require.GreaterOrEqual(t, crfIdx, 0)
	assert.Equal(t, "23", args[crfIdx+1])
}

func TestBuildSeeksToStartSec(t *testing.T) {
	preset, _ := quality.Lookup(quality.P480)
	args := Build(Request{InputPath: "/in.mkv", Preset: preset, StartSec: 120, SegmentDurSec: 2, OutputDir: "/out"})
	idx := indexOfArg(args, "-ss")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "120", args[idx+1])
}

func TestBuildOmitsSeekWhenZero(t *testing.T) {
	preset, _ := quality.Lookup(quality.P480)
	args := Build(Request{InputPath: "/in.mkv", Preset: preset, StartSec: 0, SegmentDurSec: 2, OutputDir: "/out"})
	assert.Equal(t, -1, indexOfArg(args, "-ss"))
}

func TestBuildHLSFlagsStartNumberZero(t *testing.T) {
	preset, _ := quality.Lookup(quality.P360)
	args := Build(Request{InputPath: "/in.mkv", Preset: preset, SegmentDurSec: 2, OutputDir: "/out", StartSeg: 30})
	idx := indexOfArg(args, "-start_number")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "0", args[idx+1], "monitor renames output files to timeline-absolute numbers; runner always starts at 0")
}

func TestBuildGOPAlignedToSegmentDuration(t *testing.T) {
	preset, _ := quality.Lookup(quality.P1080)
	args := Build(Request{InputPath: "/in.mkv", Preset: preset, SegmentDurSec: 2, OutputDir: "/out", FrameRate: 30})
	idx := indexOfArg(args, "-g")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "60", args[idx+1])
}
