// Package stream implements the client-facing HTTP surface: master and
// media playlists, and individual segment delivery, blocking each segment
// request until the SegmentIndex resolves it. Grounded on the teacher's
// server/handlers/media.go StreamMedia (gin.Context file serving,
// Content-Type/Content-Length/Accept-Ranges headers, event publication on
// playback start) generalized from whole-file serving to per-segment
// blocking delivery.
package stream

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/hlscore/internal/core"
	"github.com/mantonx/hlscore/internal/events"
	"github.com/mantonx/hlscore/internal/playlist"
	"github.com/mantonx/hlscore/internal/quality"
	"github.com/mantonx/hlscore/internal/segment"
	"github.com/mantonx/hlscore/internal/session"
)

// Handler serves the client-facing streaming endpoints (§6).
type Handler struct {
	sessions           *session.Manager
	meta               core.MetadataSource
	bus                *events.Bus
	segmentWaitTimeout time.Duration
}

// New constructs a Handler. segmentWaitTimeout bounds how long a segment
// request blocks before returning 408 (segment wait timeout, §7).
func New(sessions *session.Manager, meta core.MetadataSource, bus *events.Bus, segmentWaitTimeout time.Duration) *Handler {
	return &Handler{sessions: sessions, meta: meta, bus: bus, segmentWaitTimeout: segmentWaitTimeout}
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func parseQuality(c *gin.Context) (quality.Label, error) {
	raw := c.DefaultQuery("quality", string(quality.Direct))
	return quality.Parse(raw)
}

// MasterPlaylist serves GET /stream/:sceneId/master.m3u8. It validates the
// scene and quality but does not create, look up, or touch a session; the
// session is created or reused by the index.m3u8 request (MediaPlaylist).
func (h *Handler) MasterPlaylist(c *gin.Context) {
	sceneID := c.Param("sceneId")
	q, err := parseQuality(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.meta.ResolveScene(c.Request.Context(), sceneID)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	if !quality.Eligible(q, info.SourceHeight) {
		c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrQualityNotAllowed.Error()})
		return
	}
	preset, _ := quality.Lookup(q)

	body := playlist.Master(playlist.BuildParams{
		Quality: string(q),
		Width:   preset.Width,
		Height:  preset.Height,
	})
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(body))
}

// MediaPlaylist serves GET /stream/:sceneId/index.m3u8, creating or
// reusing the backing session per §4.5.
func (h *Handler) MediaPlaylist(c *gin.Context) {
	sceneID := c.Param("sceneId")
	q, err := parseQuality(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	startSec := queryFloat(c, "start", 0)

	sess, err := h.sessions.GetOrCreate(c.Request.Context(), sceneID, q, startSec)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	body := playlist.Media(playlist.BuildParams{
		DurationSec:   sess.DurationSec,
		SegmentDurSec: sess.SegmentDurSec,
		Quality:       string(q),
	})
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(body))
}

var segmentFileRE = regexp.MustCompile(`^segment_(\d+)\.ts$`)

// Segment serves GET /stream/:sceneId/:file, where file is one of the
// segment_NNN.ts names the media playlist listed, blocking until the
// segment is ready, per §4.3/§5's "client request blocks until ready,
// fails, or times out" contract.
func (h *Handler) Segment(c *gin.Context) {
	sceneID := c.Param("sceneId")
	q, err := parseQuality(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	match := segmentFileRE.FindStringSubmatch(c.Param("file"))
	if match == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid segment filename"})
		return
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid segment filename"})
		return
	}

	key := session.Key{SceneID: sceneID, Quality: q}
	sess, ok := h.sessions.Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrSessionGone.Error()})
		return
	}
	sess.Touch()

	result := sess.Index.WaitFor(c.Request.Context(), n, h.segmentWaitTimeout)
	switch result {
	case segment.ResultCompleted:
		path := filepath.Join(sess.OutputDir, fmt.Sprintf("segment_%03d.ts", n))
		c.File(path)
	case segment.ResultFailed:
		if h.bus != nil {
			h.bus.PublishAsync(events.New(events.SegmentFailed, sceneID, string(q), fmt.Sprintf("segment %d failed", n)))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": core.ErrSegmentFailed.Error()})
	case segment.ResultSessionGone:
		// the session existed at sess.Touch() above but was torn down while
		// this request was blocked in WaitFor — distinct from the pre-wait
		// absent-session check above, which stays 404.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": core.ErrSessionGone.Error()})
	case segment.ResultCancelled:
		// client disconnected; no response to write.
	default:
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "segment wait timed out"})
	}
}

// Status serves GET /session/:sceneId/status (§6.2 admin surface).
func (h *Handler) Status(c *gin.Context) {
	sceneID := c.Param("sceneId")
	q, err := parseQuality(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.sessions.Get(session.Key{SceneID: sceneID, Quality: q})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrSessionGone.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Segments serves GET /session/:sceneId/segments (§6.2 admin surface).
func (h *Handler) Segments(c *gin.Context) {
	sceneID := c.Param("sceneId")
	q, err := parseQuality(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.sessions.Get(session.Key{SceneID: sceneID, Quality: q})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrSessionGone.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.SegmentViews())
}

func writeCoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrSceneNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrQualityNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrSessionGone):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrPathNotMapped):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrMetadataNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
