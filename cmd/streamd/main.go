// Command streamd is the on-demand HLS transcoding session manager's
// entrypoint: load config, open the database, construct one Core, wire
// the gin router, and serve until a termination signal arrives. Grounded
// on the teacher's cmd/viewra/main.go startup sequencing (config → db →
// core → routes → listen) and its graceful-shutdown goroutine, narrowed to
// this domain's collaborators — no plugin host, no event-bus shutdown
// hook beyond this module's own in-process bus.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mantonx/hlscore/internal/config"
	"github.com/mantonx/hlscore/internal/core"
	"github.com/mantonx/hlscore/internal/database"
	"github.com/mantonx/hlscore/internal/events"
	"github.com/mantonx/hlscore/internal/logx"
	"github.com/mantonx/hlscore/internal/metadata"
	"github.com/mantonx/hlscore/internal/pathmap"
	"github.com/mantonx/hlscore/internal/proxy"
	"github.com/mantonx/hlscore/internal/server"
	"github.com/mantonx/hlscore/internal/session"
	"github.com/mantonx/hlscore/internal/userstore"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamd: config: %v\n", err)
		os.Exit(1)
	}

	log := logx.New(logx.Options{Name: "streamd", Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})

	log.Info("streamd starting", "http_addr", cfg.Server.HTTPAddr, "config_dir", cfg.Server.ConfigDir)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Error("database open failed", "error", err)
		os.Exit(1)
	}

	pm := pathmap.New([]pathmap.Mapping{
		{Prefix: "/media", LocalRoot: cfg.Server.MediaRoot},
	})

	meta := metadata.New(cfg.FFmpeg.FFprobePath, sceneResolver(pm, cfg.Server.MediaRoot), 5*time.Minute)
	users := userstore.New(db)

	bus := events.NewBus(256)
	bus.Subscribe(sessionHistoryWriter(db, log))

	sessionCore := session.NewCore(cfg, log, db, meta, pm, users, bus)
	defer sessionCore.Close()

	px := proxy.New(cfg.Session.SegmentWaitTimeout)

	router := server.New(sessionCore, bus, px, users)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.RunnerStopGrace+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
	}()

	log.Info("listening", "addr", cfg.Server.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server error", "error", err)
		os.Exit(1)
	}
}

// sessionHistoryWriter subscribes to session lifecycle events and persists
// one SessionRecord row per transition, per §3.1's "row written on session
// creation/state-transition/teardown for admin history and
// crash-forensics". Lives here rather than in internal/session or
// internal/database so neither package needs to import the other just for
// this wiring.
func sessionHistoryWriter(db *gorm.DB, log logx.Logger) events.Handler {
	return func(ev events.Event) {
		var state string
		var ended bool
		switch ev.Type {
		case events.SessionStarted:
			state = "active"
		case events.SessionRestarted:
			state = "restarting"
		case events.SessionStopped:
			state = "stopped"
			ended = true
		case events.SessionFailed:
			state = "failed"
			ended = true
		default:
			return
		}

		sessionID, _ := ev.Data["sessionId"].(string)
		if sessionID == "" {
			return
		}
		startSec, _ := ev.Data["startSec"].(float64)

		if err := database.RecordSessionEvent(db, sessionID, ev.SceneID, ev.Quality, state, startSec, ev.Message, ended); err != nil {
			log.Warn("session history write failed", "session", sessionID, "error", err)
		}
	}
}

// sceneResolver builds a metadata.ResolveFunc that treats a scene ID as a
// media-root-relative path, translated through the configured PathMapper.
// The real upstream metadata service (§1 "explicitly out of scope") would
// replace this with a call across that boundary; this default keeps
// streamd runnable standalone against a local media tree.
func sceneResolver(pm *pathmap.Mapper, mediaRoot string) metadata.ResolveFunc {
	return func(ctx context.Context, sceneID string) (string, []core.StreamVariant, error) {
		local, err := pm.Translate(filepath.Join("/media", sceneID))
		if err != nil {
			local = filepath.Join(mediaRoot, sceneID)
		}
		return local, nil, nil
	}
}
