// Package playlist implements PlaylistBuilder (a pure HLS manifest
// generator) and PlaylistMonitor (a directory watcher that detects
// finalized segments and renames them onto the timeline-absolute
// numbering). Grounded on pulsejet-go-transcode's hlsvod-manager.go
// getPlaylist() tag assembly and jwplayer/m3u8's plain tag-by-tag writer
// idiom.
package playlist

import (
	"fmt"
	"math"
	"strings"
)

// BuildParams is the input to Media/Master, matching §4.6:
// {duration, segmentDur, quality, sessionId}.
type BuildParams struct {
	DurationSec   float64
	SegmentDurSec float64
	Quality       string
	SessionID     string
	BandwidthBps  int
	Width         int
	Height        int
}

// SegmentCount returns ceil(duration / segmentDur), the number of
// #EXTINF entries a media playlist must contain.
func SegmentCount(durationSec, segmentDurSec float64) int {
	if segmentDurSec <= 0 {
		return 0
	}
	return int(math.Ceil(durationSec / segmentDurSec))
}

// Media builds the complete, immutable VOD media playlist for a session,
// declared up-front per §3/§4.6. Every #EXTINF is SegmentDurSec except the
// last, which is the remainder.
func Media(p BuildParams) string {
	n := SegmentCount(p.DurationSec, p.SegmentDurSec)
	targetDuration := int(math.Ceil(p.SegmentDurSec))

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration)
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")

	for i := 0; i < n; i++ {
		dur := p.SegmentDurSec
		if i == n-1 {
			dur = p.DurationSec - float64(n-1)*p.SegmentDurSec
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n", trimDuration(dur))
		fmt.Fprintf(&b, "segment_%03d.ts\n", i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// trimDuration formats a duration with at most three decimal places and
// no trailing zeros; a whole-second duration has no decimal point at all
// (2.000 -> "2", 1.500 -> "1.5").
func trimDuration(d float64) string {
	s := fmt.Sprintf("%.3f", d)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// Master builds the master playlist for a single requested quality. In
// practice the server emits exactly one variant for the requested quality
// (§4.6); clients that want to switch re-request with a different quality
// parameter rather than receiving an adaptive ladder.
func Master(p BuildParams) string {
	bandwidth := p.BandwidthBps
	if bandwidth == 0 {
		bandwidth = 2000000
	}
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	if p.Width > 0 && p.Height > 0 {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", bandwidth, p.Width, p.Height)
	} else {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d\n", bandwidth)
	}
	b.WriteString("index.m3u8\n")
	return b.String()
}
