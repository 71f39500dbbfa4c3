package proxy

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/hlscore/internal/core"
)

// Handler serves the variant-proxy HTTP surface (§4.8): the same
// client-facing URL shape as the transcoding path's StreamHandler, but
// backed by an upstream pre-generated variant instead of a spawned
// transcoder. Grounded on internal/stream.Handler's gin-context style
// (param parsing, writeCoreError-equivalent status mapping).
type Handler struct {
	proxy *Proxy
	meta  core.MetadataSource
}

// NewHandler constructs a proxy Handler.
func NewHandler(px *Proxy, meta core.MetadataSource) *Handler {
	return &Handler{proxy: px, meta: meta}
}

// ErrVariantNotFound is returned when the scene's metadata does not
// advertise the requested variant label.
var ErrVariantNotFound = errors.New("proxy: variant not found for scene")

func findVariant(info core.SceneInfo, label string) (core.StreamVariant, error) {
	for _, v := range info.Variants {
		if v.Label == label {
			return v, nil
		}
	}
	return core.StreamVariant{}, ErrVariantNotFound
}

// localPrefix is path-segment-based (/proxy/:sceneId/:variant) rather than
// the spec text's literal query-parameter shape (?variant=V): the two are
// equivalent rewrite targets, and a path segment lets the segment handler
// route purely on gin params without re-parsing a query string per request.
func localPrefix(sceneID, variantLabel string) string {
	return "/proxy/" + sceneID + "/" + variantLabel
}

// Manifest serves GET /proxy/:sceneId/:variant/index.m3u8 — fetches,
// rewrites, and returns the upstream variant's media playlist.
func (h *Handler) Manifest(c *gin.Context) {
	sceneID := c.Param("sceneId")
	variantLabel := c.Param("variant")

	info, err := h.meta.ResolveScene(c.Request.Context(), sceneID)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	variant, err := findVariant(info, variantLabel)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	body, err := h.proxy.Manifest(c.Request.Context(), variant, localPrefix(sceneID, variantLabel))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(body))
}

// Segment serves GET /proxy/:sceneId/:variant/:file — streams a single
// upstream segment through to the client with no re-encoding, forwarding
// Range if the client sent one (§4.8.3).
func (h *Handler) Segment(c *gin.Context) {
	sceneID := c.Param("sceneId")
	variantLabel := c.Param("variant")
	file := c.Param("file")

	prefix := localPrefix(sceneID, variantLabel)
	upstreamURL, ok := h.proxy.Resolve(prefix, file)
	if !ok {
		// No manifest fetched for this variant yet in this process's
		// lifetime; re-resolve and re-fetch it once before giving up, so a
		// segment request that races ahead of the first manifest request
		// still succeeds.
		info, err := h.meta.ResolveScene(c.Request.Context(), sceneID)
		if err != nil {
			writeCoreError(c, err)
			return
		}
		variant, err := findVariant(info, variantLabel)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if _, err := h.proxy.Manifest(c.Request.Context(), variant, prefix); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		upstreamURL, ok = h.proxy.Resolve(prefix, file)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "segment not listed in upstream manifest"})
			return
		}
	}

	resp, err := h.proxy.FetchSegment(c.Request.Context(), upstreamURL, c.GetHeader("Range"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	c.Header("Content-Type", "video/mp2t")
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		c.Header("Content-Range", cr)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		c.Header("Content-Length", cl)
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// headers are already flushed at this point; nothing more to do
		// beyond letting the client see a truncated body.
		return
	}
}

func writeCoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrSceneNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrMetadataNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
