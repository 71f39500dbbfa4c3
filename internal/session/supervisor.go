package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mantonx/hlscore/internal/events"
	"github.com/mantonx/hlscore/internal/ffmpegargs"
	"github.com/mantonx/hlscore/internal/logx"
	"github.com/mantonx/hlscore/internal/playlist"
	"github.com/mantonx/hlscore/internal/process"
	"github.com/mantonx/hlscore/internal/quality"
	"github.com/mantonx/hlscore/internal/segment"
)

// Deps bundles the tunables and collaborators SessionSupervisor needs to
// start, supervise, and tear down a transcoder process — mirroring
// SessionConfig (§6) rather than threading each field through separately.
// Bus is optional: nil in tests that don't care about lifecycle
// notifications.
type Deps struct {
	FFmpegPath            string
	SegmentWaitTimeout    time.Duration
	SessionStartupTimeout time.Duration
	SegmentTimeout        time.Duration
	RunnerStopGrace       time.Duration
	MaxRetries            int
	Log                   logx.Logger
	Bus                   *events.Bus
}

// New constructs a Session in the Starting state for (sceneID, quality),
// per §4.4's SessionSupervisor responsibilities: compose arguments, spawn,
// block until the startup deadline or the first segment completes.
func New(sceneID string, q quality.Preset, inputPath, baseDir string, sourceWidth, sourceHeight int, durationSec, segmentDurSec float64) *Session {
	id := uuid.NewString()
	return &Session{
		ID:            id,
		Key:           Key{SceneID: sceneID, Quality: q.Label},
		InputPath:     inputPath,
		OutputDir:     fmt.Sprintf("%s/%s", baseDir, id),
		SegmentDurSec: segmentDurSec,
		SourceWidth:   sourceWidth,
		SourceHeight:  sourceHeight,
		DurationSec:   durationSec,
		Preset:        q,
		Index:         segment.New(),
		state:         Starting,
		lastActivity:  time.Now(),
	}
}

// Start resets startSec to 0, spawns the first runner generation at
// timeline position 0, and blocks until either segment 0 completes, the
// session fails, or SessionStartupTimeout elapses — matching §4.4's
// "client's first request blocks until the startup deadline or the first
// segment completes, whichever is sooner". A non-zero start position is
// only reached through Restart.
func (s *Session) Start(ctx context.Context, deps Deps) error {
	s.mu.Lock()
	s.startSec = 0
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	return s.launch(ctx, runCtx, deps, gen, 0, 0)
}

// Restart tears down the current runner generation and relaunches at
// atSec, used when a seek falls outside the producible window (§4.5's
// "otherwise: stop current runner, start a new one at the requested
// position"). startSeg is the timeline-absolute segment number the new
// runner generation's segment_000.ts will correspond to.
func (s *Session) Restart(ctx context.Context, deps Deps, atSec float64, startSeg int) error {
	s.setState(Restarting)
	s.teardownRunner(deps.RunnerStopGrace)

	s.mu.Lock()
	s.startSec = atSec
	s.producedEnd = startSeg
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	return s.launch(ctx, runCtx, deps, gen, atSec, startSeg)
}

func (s *Session) launch(ctx context.Context, runCtx context.Context, deps Deps, gen int, atSec float64, startSeg int) error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		s.fail(deps, err.Error())
		return fmt.Errorf("session: create output dir: %w", err)
	}

	// Each runner generation writes into its own scratch sub-directory: a
	// seek-driven Restart's new ffmpeg invocation also runs with
	// -start_number 0 -y, so reusing s.OutputDir directly would overwrite
	// segment_000.ts, segment_001.ts, … that a prior generation already
	// renamed there (§4.3). The playlist Monitor renames finalized segments
	// out of genDir and into the shared s.OutputDir under their
	// timeline-absolute names, so already-served segments are untouched.
	genDir := filepath.Join(s.OutputDir, fmt.Sprintf("gen-%d", gen))
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		s.fail(deps, err.Error())
		return fmt.Errorf("session: create generation dir: %w", err)
	}

	s.mu.Lock()
	s.StartSeg = startSeg
	s.mu.Unlock()

	req := ffmpegargs.Request{
		InputPath:     s.InputPath,
		StartSec:      atSec,
		Preset:        s.Preset,
		SegmentDurSec: s.SegmentDurSec,
		OutputDir:     genDir,
		StartSeg:      startSeg,
	}
	args := ffmpegargs.Build(req)

	log := logx.Session(deps.Log, s.ID, s.Key.SceneID, string(s.Key.Quality))
	runner := process.New(deps.FFmpegPath, args, genDir, log)
	runner.OnProgress(func(process.Progress) { s.Touch() })

	monitor := playlist.New(genDir, s.OutputDir, startSeg, s.Index, log)
	monitor.OnFinalize(func(timelineN int) {
		s.recordFinalized(gen, timelineN)
		s.markNextTranscoding(gen, timelineN+1)
	})

	// The runner gets its own background context: its lifetime is governed
	// by explicit Stop() (graceful SIGTERM->SIGKILL escalation), not by
	// runCtx cancellation, which only signals the monitor/sweep/watch
	// goroutines below to stop observing.
	if err := runner.Start(context.Background()); err != nil {
		s.fail(deps, err.Error())
		return fmt.Errorf("session: start runner: %w", err)
	}
	s.mu.Lock()
	s.runner = runner
	s.mu.Unlock()

	s.markNextTranscoding(gen, startSeg)

	go monitor.Run(runCtx)
	go s.watchExit(runCtx, runner, deps, gen)
	go s.sweepTimeouts(runCtx, deps, gen)

	firstSeg := startSeg
	waitCtx, waitCancel := context.WithTimeout(ctx, deps.SessionStartupTimeout)
	defer waitCancel()
	result := s.Index.WaitFor(waitCtx, firstSeg, deps.SessionStartupTimeout)

	s.mu.Lock()
	stillCurrent := s.generation == gen
	s.mu.Unlock()
	if !stillCurrent {
		return nil
	}

	switch result {
	case segment.ResultCompleted:
		s.setState(Active)
		s.Touch()
		if gen == 1 {
			s.publish(deps, events.SessionStarted, "first segment ready")
		} else {
			s.publish(deps, events.SessionRestarted, fmt.Sprintf("restarted at %gs", atSec))
		}
		return nil
	case segment.ResultSessionGone:
		return fmt.Errorf("session: torn down during startup")
	default:
		s.fail(deps, "startup deadline exceeded before first segment completed")
		s.teardownRunner(deps.RunnerStopGrace)
		return fmt.Errorf("session: startup timeout waiting for first segment")
	}
}

// publish emits a session-lifecycle event carrying this session's ID and
// current start position, for the database subscriber that persists
// SessionRecord rows (§3.1). A nil Bus is a no-op, so tests that build
// Deps without one are unaffected.
func (s *Session) publish(deps Deps, t events.Type, msg string) {
	if deps.Bus == nil {
		return
	}
	ev := events.New(t, s.Key.SceneID, string(s.Key.Quality), msg)
	ev.Data = map[string]interface{}{"sessionId": s.ID, "startSec": s.StartSec()}
	deps.Bus.PublishAsync(ev)
}

// fail marks the session Failed and publishes a SessionFailed event,
// replacing the bare setFailed calls that never notified the history
// subscriber.
func (s *Session) fail(deps Deps, errMsg string) {
	s.setFailed(errMsg)
	s.publish(deps, events.SessionFailed, errMsg)
}

// markNextTranscoding marks segment n as Transcoding with a fresh
// StartedAt, so sweepTimeouts has a real clock to measure against while
// the runner is producing it. A stale call from a generation the session
// has since moved on from is ignored. Segments past the scene's last one
// are never marked: nothing will ever request them, so there is nothing
// to time out.
func (s *Session) markNextTranscoding(gen, n int) {
	s.mu.RLock()
	stillCurrent := gen == s.generation
	s.mu.RUnlock()
	if !stillCurrent {
		return
	}
	total := playlist.SegmentCount(s.DurationSec, s.SegmentDurSec)
	if n >= total {
		return
	}
	s.Index.Mark(n, segment.Transcoding, func(m *segment.Meta) {
		m.StartedAt = time.Now()
	})
}

// recordFinalized extends producedEnd when timelineN closes the
// contiguous run starting at StartSeg. Stale callbacks from a superseded
// runner generation (gen) are ignored.
func (s *Session) recordFinalized(gen, timelineN int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	if timelineN == s.producedEnd {
		s.producedEnd = timelineN + 1
	} else if timelineN > s.producedEnd {
		// a later segment finalized out of order; producedEnd still only
		// advances contiguously, the gap will close on a later callback.
		return
	}
}

// watchExit observes the runner's exit and fails the session if it exits
// before being asked to stop.
func (s *Session) watchExit(ctx context.Context, runner *process.Runner, deps Deps, gen int) {
	select {
	case code := <-runner.Done():
		s.mu.Lock()
		stale := gen != s.generation
		st := s.state
		s.mu.Unlock()
		if stale || st == Stopping || st == Stopped {
			return
		}
		if code != 0 {
			s.fail(deps, fmt.Sprintf("transcoder exited with code %d", code))
		}
	case <-ctx.Done():
	}
}

// sweepTimeouts periodically checks for segments stuck in Waiting or
// Transcoding past SegmentTimeout, marks them Failed, and — when the
// segment's retry count is still under MaxRetries — seek-restarts the
// runner at that segment's position, per §4.4's "marked failed unless
// retries < MAX_RETRIES, in which case it is re-requested". A restart
// supersedes this generation (teardownRunner cancels runCtx), so the
// sweep stops as soon as it triggers one rather than keep scanning a
// generation that is being torn down underneath it.
func (s *Session) sweepTimeouts(ctx context.Context, deps Deps, gen int) {
	ticker := time.NewTicker(deps.SegmentTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			stillCurrent := s.generation == gen
			s.mu.RUnlock()
			if !stillCurrent {
				return
			}
			if s.sweepOnce(deps) {
				return
			}
		}
	}
}

// sweepOnce scans the index once and, if it finds a segment to fail,
// marks it and kicks off a retry restart if retries remain. It reports
// whether a restart was triggered (and this sweep goroutine should stop).
func (s *Session) sweepOnce(deps Deps) bool {
	for n, meta := range s.Index.Segments() {
		stuck := meta.State == segment.Waiting || meta.State == segment.Transcoding
		if !stuck || time.Since(meta.StartedAt) <= deps.SegmentTimeout {
			continue
		}

		retries := meta.Retries
		s.Index.Mark(n, segment.Failed, func(m *segment.Meta) {
			m.LastError = "segment timeout"
			m.Retries++
		})
		if deps.Bus != nil {
			deps.Bus.PublishAsync(events.New(events.SegmentFailed, s.Key.SceneID, string(s.Key.Quality), fmt.Sprintf("segment %d timed out", n)))
		}

		if retries >= deps.MaxRetries {
			continue
		}

		atSec := float64(n) * s.SegmentDurSec
		go func(atSec float64, startSeg int) {
			// Background, not the sweeping generation's runCtx: Restart's
			// teardownRunner cancels that context as part of tearing down
			// this generation, which would abort the new generation's
			// first-segment wait before it ever started.
			if err := s.Restart(context.Background(), deps, atSec, startSeg); err != nil {
				deps.Log.Warn("segment-timeout restart failed", "segment", startSeg, "error", err)
			}
		}(atSec, n)
		return true
	}
	return false
}

// Stop tears down the runner, cancels all waiters, and marks the session
// Stopped, per §4.4's teardown responsibility.
func (s *Session) Stop(deps Deps) {
	s.setState(Stopping)
	s.teardownRunner(deps.RunnerStopGrace)
	s.Index.Close()
	s.setState(Stopped)
	s.publish(deps, events.SessionStopped, "session torn down")
}

func (s *Session) teardownRunner(grace time.Duration) {
	s.mu.Lock()
	runner := s.runner
	cancel := s.cancelRun
	s.mu.Unlock()

	if runner != nil {
		runner.Stop(grace)
	}
	if cancel != nil {
		cancel()
	}
}
