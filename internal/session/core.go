package session

import (
	"github.com/mantonx/hlscore/internal/config"
	"github.com/mantonx/hlscore/internal/core"
	"github.com/mantonx/hlscore/internal/events"
	"github.com/mantonx/hlscore/internal/logx"
	"gorm.io/gorm"
)

// Core is the explicit, dependency-injected value threaded through every
// HTTP handler, per Design Notes §9: "Model as an explicit Core value
// constructed once at startup" rather than package-level singletons.
// Grounded on the teacher's cmd/viewra/main.go wiring sequence (config,
// logger, db, then the higher-level managers in dependency order).
type Core struct {
	Config     *config.Config
	Log        logx.Logger
	DB         *gorm.DB
	Metadata   core.MetadataSource
	PathMapper core.PathMapper
	Users      core.UserStore
	Sessions   *Manager
}

// NewCore wires the collaborators into one Core value. It does not open
// the database or start the session manager's idle sweep more than once;
// callers construct Metadata/PathMapper/Users/db beforehand and pass them
// in, keeping this package free of knowledge about which concrete
// implementations back those interfaces. bus is threaded into the
// session manager so every lifecycle transition can publish a
// notification the database history subscriber persists (§3.1).
func NewCore(cfg *config.Config, log logx.Logger, db *gorm.DB, meta core.MetadataSource, pm core.PathMapper, users core.UserStore, bus *events.Bus) *Core {
	sessions := NewManager(cfg.Session, cfg.FFmpeg.FFmpegPath, cfg.Server.ConfigDir+"/hls", meta, log, bus)
	return &Core{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Metadata:   meta,
		PathMapper: pm,
		Users:      users,
		Sessions:   sessions,
	}
}

// Close tears down long-lived resources on process shutdown.
func (c *Core) Close() {
	c.Sessions.Close()
}
