// Package ffmpegargs builds the argument list for the spawned transcoder
// process. Grounded on the teacher's sdk/transcoding/ffmpeg/args.go:
// CRF/x264-params quality settings, GOP alignment to segment duration, and
// the HLS-specific container flags. The ABR bitrate-ladder code paths
// (getDashABRArgs/getHLSABRArgs) are intentionally not reproduced — see
// DESIGN.md for why.
package ffmpegargs

import (
	"fmt"
	"math"

	"github.com/mantonx/hlscore/internal/quality"
)

// Request describes one transcoder invocation, matching
// SessionSupervisor's argument-composition responsibility (§4.4):
// {inputPath, startSec, preset, segmentDur, outputDir, startSeg}.
type Request struct {
	InputPath     string
	StartSec      float64
	Preset        quality.Preset
	SegmentDurSec float64
	OutputDir     string
	StartSeg      int
	FrameRate     float64 // assumed source frame rate, defaults to 30 if zero
}

// Build assembles the full ffmpeg argument list for Request. The spawned
// process is expected to: seek to StartSec, emit a fixed-GOP H.264/AAC
// MPEG-TS segmented stream with segment duration SegmentDurSec, number
// its output files starting at 0 in OutputDir, and write a VOD-typed
// media playlist referencing all segments (§6 transcoder argument
// contract).
func Build(req Request) []string {
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "info"}

	if req.StartSec > 0 {
		args = append(args, "-ss", formatSeconds(req.StartSec))
	}
	args = append(args, "-i", req.InputPath)

	if req.Preset.Label == quality.Direct {
		args = append(args, "-c", "copy")
	} else {
		args = append(args,
			"-map", "0:v:0", "-map", "0:a:0?",
			"-c:v", "libx264",
			"-preset", "veryfast",
		)
		args = append(args, qualityArgs(req.Preset)...)
		args = append(args, scaleFilterArgs(req.Preset)...)
		args = append(args, keyframeArgs(req.SegmentDurSec, frameRate)...)
		args = append(args, audioArgs(req.Preset)...)
	}

	args = append(args, hlsContainerArgs(req)...)
	return args
}

// qualityArgs maps a quality preset to a CRF value and encoder profile,
// following the teacher's quality-percent-to-CRF linear mapping pattern
// (sdk/transcoding/quality/mapper.go), adapted to this spec's fixed bitrate
// table by deriving an equivalent CRF band per preset height.
func qualityArgs(p quality.Preset) []string {
	crf := crfForHeight(p.Height)
	profile := "high"
	if p.Height <= 480 {
		profile = "main"
	}
	return []string{
		"-crf", fmt.Sprintf("%d", crf),
		"-profile:v", profile,
		"-pix_fmt", "yuv420p",
	}
}

// crfForHeight maps a target resolution to a constant-rate-factor value:
// higher resolutions get a slightly lower (better-quality) CRF. Grounded
// on the teacher's codec-aware CRF range tables in quality/mapper.go,
// adapted to this spec's resolution-keyed preset table instead of a
// percent slider.
func crfForHeight(height int) int {
	switch {
	case height >= 2160:
		return 20
	case height >= 1080:
		return 21
	case height >= 720:
		return 23
	case height >= 480:
		return 25
	default:
		return 27
	}
}

func scaleFilterArgs(p quality.Preset) []string {
	if p.Width == 0 || p.Height == 0 {
		return nil
	}
	filter := fmt.Sprintf("scale=%d:%d:flags=lanczos,format=yuv420p", p.Width, p.Height)
	return []string{"-vf", filter}
}

// keyframeArgs aligns the GOP size to the segment duration so each output
// segment starts on a keyframe, per §4.4's "fixed GOP aligned to
// segmentDur" requirement. Grounded on getKeyframeAlignmentArgs in the
// teacher's args.go.
func keyframeArgs(segmentDurSec, frameRate float64) []string {
	gop := int(math.Round(segmentDurSec * frameRate))
	if gop <= 0 {
		gop = 48
	}
	expr := fmt.Sprintf("expr:gte(t,n_forced*%g)", segmentDurSec)
	return []string{
		"-force_key_frames", expr,
		"-g", fmt.Sprintf("%d", gop),
		"-keyint_min", fmt.Sprintf("%d", gop),
		"-sc_threshold", "0",
	}
}

func audioArgs(p quality.Preset) []string {
	bitrate := p.AudioBitrateKbps
	if bitrate == 0 {
		bitrate = 128
	}
	return []string{
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", bitrate),
		"-ac", "2",
		"-ar", "48000",
	}
}

// hlsContainerArgs emits the HLS/VOD-specific muxer flags: segment
// duration, VOD playlist type, 0-based segment numbering (the
// PlaylistMonitor renames to timeline-absolute numbers), and output paths.
// Grounded on getContainerSpecificArgs's hls branch in the teacher's
// args.go.
func hlsContainerArgs(req Request) []string {
	return []string{
		"-f", "hls",
		"-hls_time", formatSeconds(req.SegmentDurSec),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-start_number", "0",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", req.OutputDir + "/segment_%03d.ts",
		req.OutputDir + "/stream.m3u8",
	}
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%g", s)
}
