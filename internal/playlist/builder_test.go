package playlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentCountCeiling(t *testing.T) {
	assert.Equal(t, 4, SegmentCount(8.0, 2.0))
	assert.Equal(t, 5, SegmentCount(8.1, 2.0))
	assert.Equal(t, 300, SegmentCount(600, 2))
}

func TestMediaPlaylistExactEntryCountAndDurations(t *testing.T) {
	m := Media(BuildParams{DurationSec: 8.0, SegmentDurSec: 2.0, Quality: "480p", SessionID: "s1"})
	assert.Equal(t, 4, strings.Count(m, "#EXTINF"))
	assert.Contains(t, m, "#EXT-X-ENDLIST")
	assert.Contains(t, m, "#EXT-X-PLAYLIST-TYPE:VOD")
	assert.Contains(t, m, "segment_000.ts")
	assert.Contains(t, m, "segment_003.ts")
}

func TestMediaPlaylistLastSegmentIsShort(t *testing.T) {
	m := Media(BuildParams{DurationSec: 7.0, SegmentDurSec: 2.0, Quality: "480p", SessionID: "s1"})
	lines := strings.Split(m, "\n")
	// 4 segments: 2,2,2,1 -> last EXTINF should declare 1 second.
	assert.Equal(t, 4, strings.Count(m, "#EXTINF"))
	found := false
	for _, l := range lines {
		if l == "#EXTINF:1," {
			found = true
		}
	}
	assert.True(t, found, "expected a short final #EXTINF:1, line, got:\n%s", m)
}

func TestMediaPlaylistIsByteIdenticalAcrossCalls(t *testing.T) {
	p := BuildParams{DurationSec: 600, SegmentDurSec: 2, Quality: "1080p", SessionID: "s1"}
	a := Media(p)
	b := Media(p)
	assert.Equal(t, a, b)
}

func TestMasterPlaylistIncludesResolution(t *testing.T) {
	m := Master(BuildParams{Quality: "720p", Width: 1280, Height: 720, BandwidthBps: 3000000})
	assert.Contains(t, m, "RESOLUTION=1280x720")
	assert.Contains(t, m, "BANDWIDTH=3000000")
	assert.Contains(t, m, "index.m3u8")
}
