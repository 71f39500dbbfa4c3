// Package proxy implements VariantProxy: forwarding a pre-transcoded
// upstream variant manifest and its segments to the client, rewriting
// manifest URIs so every subsequent request routes back through us
// instead of leaking the upstream origin (and any credentials embedded
// in it) to the client. Grounded on m3u-stream-merger-proxy's
// StreamCoordinator (proxy/buffer/coordinator_m3u8.go): fetch upstream
// playlist, parse it line-by-line, rewrite segment URIs, stream segments
// through our own response writer rather than redirecting the client to
// the origin.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/hlscore/internal/core"
)

// Proxy fetches and rewrites a scene's pre-generated variant streams,
// per §4.8/Glossary "Variant": content the upstream already transcoded,
// served without spawning a local transcoder.
type Proxy struct {
	client *http.Client

	mu      sync.Mutex
	byPrefx map[string]map[string]string // localPrefix -> filename -> upstream URL
}

// New constructs a Proxy with a bounded-timeout HTTP client.
func New(timeout time.Duration) *Proxy {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Proxy{
		client:  &http.Client{Timeout: timeout},
		byPrefx: make(map[string]map[string]string),
	}
}

// Manifest fetches the upstream manifest for a variant and rewrites every
// relative URI so it points at localPrefix instead of the upstream
// origin, stripping any userinfo/query credentials from the rewritten
// links in the process. The filename→upstream-URL mapping it discovers is
// cached under localPrefix so a later Resolve call for the same prefix can
// find the real origin to stream a segment request from.
func (p *Proxy) Manifest(ctx context.Context, variant core.StreamVariant, localPrefix string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, variant.ManifestURL, nil)
	if err != nil {
		return "", fmt.Errorf("proxy: build manifest request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("proxy: fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy: upstream manifest returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("proxy: read manifest: %w", err)
	}

	base, err := url.Parse(variant.ManifestURL)
	if err != nil {
		return "", fmt.Errorf("proxy: parse manifest URL: %w", err)
	}

	rewritten, segmentURLs := rewriteManifest(string(body), base, localPrefix)

	p.mu.Lock()
	p.byPrefx[localPrefix] = segmentURLs
	p.mu.Unlock()

	return rewritten, nil
}

// Resolve looks up the upstream URL a previously-fetched manifest mapped a
// rewritten segment filename to. It returns false if no manifest for this
// prefix has been fetched yet (the handler should re-fetch the manifest
// first, which happens automatically on the next master/index request).
func (p *Proxy) Resolve(localPrefix, filename string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.byPrefx[localPrefix]
	if !ok {
		return "", false
	}
	u, ok := m[filename]
	return u, ok
}

// rewriteManifest rewrites every non-comment, non-blank line (a URI per
// the HLS spec) to route through localPrefix, preserving the origin's
// ordering and tags exactly. Every URI is resolved against base first, so
// relative URIs map to the right upstream location. It also returns the
// rewritten-filename → upstream-URL mapping it built along the way.
func rewriteManifest(manifest string, base *url.URL, localPrefix string) (string, map[string]string) {
	lines := strings.Split(manifest, "\n")
	segmentURLs := make(map[string]string)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		resolved, err := base.Parse(trimmed)
		if err != nil {
			continue
		}
		upstream := resolved.String()
		resolved.User = nil // strip any embedded credentials before handing to the client
		name := resolved.Path[strings.LastIndex(resolved.Path, "/")+1:]
		lines[i] = strings.TrimRight(localPrefix, "/") + "/" + name
		segmentURLs[name] = upstream
	}
	return strings.Join(lines, "\n"), segmentURLs
}

// FetchSegment opens a request for a single upstream segment, forwarding
// rangeHeader if non-empty (§4.8: "Forwards Range if upstream supports
// it"). The caller is responsible for closing the returned response body
// once its bytes have been streamed to the client — this split (rather
// than Segment writing straight to an io.Writer) lets the caller inspect
// the upstream's status/headers and set its own response headers before
// the first body byte is written.
func (p *Proxy) FetchSegment(ctx context.Context, upstreamURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("proxy: build segment request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy: fetch segment: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("proxy: upstream segment returned %d", resp.StatusCode)
	}
	return resp, nil
}
