// Package metadata implements MetadataSource with real ffprobe
// invocations, grounded on the teacher's backend/internal/metadata/
// ffprobe.go (shell out to ffprobe, decode JSON). A small in-memory TTL
// cache matches §6's "caches allowed at implementer's discretion".
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/mantonx/hlscore/internal/core"
)

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type cacheEntry struct {
	info      core.SceneInfo
	expiresAt time.Time
}

// ResolveFunc maps a scene ID to its source file path and variant list.
// The transcoding core never talks to the upstream metadata service
// directly; this indirection is the seam an implementer wires to the real
// upstream client.
type ResolveFunc func(ctx context.Context, sceneID string) (path string, variants []core.StreamVariant, err error)

// FFProbeMetadataSource resolves scene metadata by invoking ffprobe
// against the path returned by a ResolveFunc, caching results for TTL.
type FFProbeMetadataSource struct {
	ffprobePath string
	resolve     ResolveFunc
	ttl         time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New constructs a FFProbeMetadataSource.
func New(ffprobePath string, resolve ResolveFunc, ttl time.Duration) *FFProbeMetadataSource {
	return &FFProbeMetadataSource{
		ffprobePath: ffprobePath,
		resolve:     resolve,
		ttl:         ttl,
		cache:       make(map[string]cacheEntry),
	}
}

// ResolveScene implements core.MetadataSource.
func (m *FFProbeMetadataSource) ResolveScene(ctx context.Context, sceneID string) (core.SceneInfo, error) {
	if cached, ok := m.fromCache(sceneID); ok {
		return cached, nil
	}

	path, variants, err := m.resolve(ctx, sceneID)
	if err != nil {
		return core.SceneInfo{}, fmt.Errorf("metadata: resolve scene %q: %w", sceneID, err)
	}

	info, err := m.probe(ctx, path)
	if err != nil {
		return core.SceneInfo{}, fmt.Errorf("metadata: probe %q: %w", path, err)
	}
	info.Path = path
	info.Variants = variants
	info.IsStreamable = true

	m.mu.Lock()
	m.cache[sceneID] = cacheEntry{info: info, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return info, nil
}

func (m *FFProbeMetadataSource) fromCache(sceneID string) (core.SceneInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[sceneID]
	if !ok || time.Now().After(e.expiresAt) {
		return core.SceneInfo{}, false
	}
	return e.info, true
}

func (m *FFProbeMetadataSource) probe(ctx context.Context, path string) (core.SceneInfo, error) {
	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return core.SceneInfo{}, err
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return core.SceneInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := core.SceneInfo{}
	if parsed.Format.Duration != "" {
		d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err == nil {
			info.DurationSec = d
		}
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			info.SourceWidth = s.Width
			info.SourceHeight = s.Height
			info.SourceCodec = s.CodecName
			break
		}
	}
	return info, nil
}
