// Package core declares the collaborator interfaces the streaming core
// consumes (MetadataSource, PathMapper, UserStore) and the sentinel error
// kinds shared across package boundaries, per Design Notes §9: "Model as
// an explicit Core value constructed at startup and threaded through
// handlers" instead of reaching implicit global singletons. Concrete Core
// wiring lives in internal/session (it needs the session package's types),
// this package only holds the shared vocabulary every layer depends on.
package core

import (
	"context"
	"errors"
)

// Sentinel error kinds, matched with errors.Is at the HTTP boundary to
// pick a status code (§7's error kinds, §7.1's ambient handling).
var (
	ErrSceneNotFound     = errors.New("core: scene not found")
	ErrQualityNotAllowed = errors.New("core: quality not allowed for this scene")
	ErrSessionGone       = errors.New("core: session is gone")
	ErrSegmentFailed     = errors.New("core: segment failed")
	ErrPathNotMapped     = errors.New("core: path has no mapping")
	ErrMetadataNotReady  = errors.New("core: metadata source not yet initialized")
)

// StreamVariant is one upstream-advertised pre-transcoded stream path, as
// returned by MetadataSource.ResolveScene. Served by VariantProxy, not by
// the transcoding path (§4.8, Glossary "Variant").
type StreamVariant struct {
	Label       string
	ManifestURL string
}

// SceneInfo is what MetadataSource.ResolveScene resolves a scene ID to.
type SceneInfo struct {
	Path         string
	DurationSec  float64
	SourceWidth  int
	SourceHeight int
	SourceCodec  string
	Variants     []StreamVariant
	IsStreamable bool
}

// MetadataSource resolves a scene ID to its on-disk path, duration, codec
// info, and available pre-generated stream variants (§6). Caching is
// allowed at the implementer's discretion; the streaming core treats every
// call as potentially cached.
type MetadataSource interface {
	ResolveScene(ctx context.Context, sceneID string) (SceneInfo, error)
}

// PathMapper translates upstream-reported paths into locally accessible
// ones via longest-prefix match over a configured table (§6).
type PathMapper interface {
	Translate(externalPath string) (string, error)
}

// UserStore authenticates callers and records watch position, ratings, and
// playlists. The transcoding core never calls it directly — only the HTTP
// framing layer does (§6, §1).
type UserStore interface {
	Authenticate(token string) (userID string, err error)
	RecordProgress(userID, sceneID string, positionSec float64) error
}
