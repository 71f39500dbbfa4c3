package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mantonx/hlscore/internal/config"
	"github.com/mantonx/hlscore/internal/core"
	"github.com/mantonx/hlscore/internal/events"
	"github.com/mantonx/hlscore/internal/logx"
	"github.com/mantonx/hlscore/internal/quality"
)

// Manager implements SessionManager (§4.5): the registry of live sessions
// keyed by (sceneId, quality), with get-or-create reuse/restart policy, an
// idle sweep, and an optional LRU cap. Grounded on the teacher's
// sdk/transcoding/session/manager.go Manager (per-key locking, idle
// reaper) generalized to this spec's forward-only producible-window reuse
// rule instead of the teacher's simpler "always reuse if still running".
type Manager struct {
	cfg     config.SessionConfig
	ffmpeg  string
	baseDir string
	meta    core.MetadataSource
	log     logx.Logger
	bus     *events.Bus

	mu       sync.Mutex
	sessions map[Key]*Session
	locks    map[Key]*sync.Mutex // per-key creation lock, singleflight-style
	lru      []Key               // most-recently-touched last

	stopSweep chan struct{}
}

// NewManager constructs a Manager and starts its idle sweep goroutine.
// baseDir is the root directory under which each session gets its own
// output subdirectory (named after the session ID). bus is optional: nil
// disables session-lifecycle event publication.
func NewManager(cfg config.SessionConfig, ffmpegPath, baseDir string, meta core.MetadataSource, log logx.Logger, bus *events.Bus) *Manager {
	m := &Manager{
		cfg:       cfg,
		ffmpeg:    ffmpegPath,
		baseDir:   baseDir,
		meta:      meta,
		log:       log,
		bus:       bus,
		sessions:  make(map[Key]*Session),
		locks:     make(map[Key]*sync.Mutex),
		stopSweep: make(chan struct{}),
	}
	go m.sweepIdle()
	return m
}

func (m *Manager) keyLock(k Key) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	return l
}

// GetOrCreate resolves an existing reusable session, restarts one whose
// producible window can no longer serve startSec, or creates a new one —
// the three-way decision of §4.5. A per-key lock serializes concurrent
// requests for the same (sceneId, quality) so only one runner is ever
// spawned for it (the teacher's singleflight pattern in manager.go). A
// newly created session starts producing from position 0 (see
// Session.Start); startSec decides reuse versus restart only for an
// existing session.
func (m *Manager) GetOrCreate(ctx context.Context, sceneID string, q quality.Label, startSec float64) (*Session, error) {
	info, err := m.meta.ResolveScene(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSceneNotFound, err)
	}
	if !quality.Eligible(q, info.SourceHeight) {
		return nil, core.ErrQualityNotAllowed
	}
	preset, err := quality.Lookup(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrQualityNotAllowed, err)
	}

	key := Key{SceneID: sceneID, Quality: q}
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	deps := Deps{
		FFmpegPath:            m.ffmpeg,
		SegmentWaitTimeout:    m.cfg.SegmentWaitTimeout,
		SessionStartupTimeout: m.cfg.SessionStartupTimeout,
		SegmentTimeout:        m.cfg.SegmentTimeout,
		RunnerStopGrace:       m.cfg.RunnerStopGrace,
		MaxRetries:            m.cfg.MaxRetries,
		Log:                   m.log,
		Bus:                   m.bus,
	}

	m.mu.Lock()
	existing, ok := m.sessions[key]
	m.mu.Unlock()

	if ok {
		if m.canServe(existing, startSec) {
			existing.Touch()
			m.touchLRU(key)
			return existing, nil
		}

		startSeg := timelineSeg(startSec, existing.SegmentDurSec)
		if err := existing.Restart(ctx, deps, startSec, startSeg); err != nil {
			return nil, fmt.Errorf("session: restart: %w", err)
		}
		m.touchLRU(key)
		return existing, nil
	}

	m.evictIfNeeded()

	s := New(sceneID, preset, info.Path, m.baseDir, info.SourceWidth, info.SourceHeight, info.DurationSec, m.cfg.SegmentDurationSec)
	if err := s.Start(ctx, deps); err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}

	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()
	m.touchLRU(key)
	return s, nil
}

// canServe implements §4.5's reuse rule: a session can serve startSec if
// it falls within [session.startSec, producedEnd*segDur + REUSE_AHEAD_GRACE_SEC] —
// the forward-only producible window plus a small look-ahead grace.
func (m *Manager) canServe(s *Session, startSec float64) bool {
	if s.State() == Failed || s.State() == Stopped {
		return false
	}
	sessionStart := s.StartSec()
	if startSec < sessionStart {
		return false
	}
	producedEndSec := float64(s.ProducedEnd()) * s.SegmentDurSec
	return startSec <= producedEndSec+m.cfg.ReuseAheadGrace.Seconds()
}

func timelineSeg(startSec, segmentDurSec float64) int {
	if segmentDurSec <= 0 {
		return 0
	}
	return int(math.Floor(startSec / segmentDurSec))
}

// Destroy stops and removes the session for key, if present.
func (m *Manager) Destroy(key Key) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.removeLRU(key)
	m.mu.Unlock()

	if ok {
		s.Stop(Deps{RunnerStopGrace: m.cfg.RunnerStopGrace, Bus: m.bus})
	}
}

// Get returns the live session for key, if any, without creating one.
func (m *Manager) Get(key Key) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

// List returns every live session, for the GET /api/sessions admin
// aggregate (§6.2). Order is unspecified.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) touchLRU(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	m.lru = append(m.lru, key)
}

func (m *Manager) removeLRU(key Key) {
	m.removeLocked(key)
}

func (m *Manager) removeLocked(key Key) {
	for i, k := range m.lru {
		if k == key {
			m.lru = append(m.lru[:i], m.lru[i+1:]...)
			return
		}
	}
}

// evictIfNeeded enforces MAX_CONCURRENT_SESSIONS (0 = unlimited) by
// destroying the least-recently-touched session (the one with the oldest
// last-activity timestamp), per §4.5's admission control note.
func (m *Manager) evictIfNeeded() {
	if m.cfg.MaxConcurrentSessions <= 0 {
		return
	}
	m.mu.Lock()
	if len(m.sessions) < m.cfg.MaxConcurrentSessions {
		m.mu.Unlock()
		return
	}
	var victim Key
	var oldest time.Duration = -1
	for k, s := range m.sessions {
		if age := s.LastActivityAge(); age > oldest {
			oldest = age
			victim = k
		}
	}
	m.mu.Unlock()
	if victim != (Key{}) {
		m.Destroy(victim)
	}
}

// sweepIdle periodically destroys sessions that have had no activity for
// longer than IdleTimeout (§4.5/§6).
func (m *Manager) sweepIdle() {
	ticker := time.NewTicker(m.cfg.IdleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.mu.Lock()
			var idle []Key
			for k, s := range m.sessions {
				if s.LastActivityAge() > m.cfg.IdleTimeout {
					idle = append(idle, k)
				}
			}
			m.mu.Unlock()
			for _, k := range idle {
				m.log.Info("destroying idle session", "key", k.String())
				m.Destroy(k)
			}
		}
	}
}

// Close stops the idle sweep and tears down every live session, for
// graceful process shutdown.
func (m *Manager) Close() {
	close(m.stopSweep)
	m.mu.Lock()
	keys := make([]Key, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	for _, k := range keys {
		m.Destroy(k)
	}
}
