// Package session implements SessionSupervisor and SessionManager: the
// two highest-level components of the streaming core. Grounded on the
// teacher's sdk/transcoding/session/manager.go (Manager/Session struct
// shape) and streaming/streamer.go (monitorSession completion-goroutine
// pattern), with state derivation informed by ManuGH-xg2g's
// DeriveLifecycleState pure-function idiom.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/mantonx/hlscore/internal/process"
	"github.com/mantonx/hlscore/internal/quality"
	"github.com/mantonx/hlscore/internal/segment"
)

// State is the tagged lifecycle variant from §3/Design Notes §9: a
// closed, compile-checked enum rather than a dynamic map of ad-hoc
// fields. State changes go through setState and setFailed, which do not
// check whether a transition is valid: any state can follow any other.
type State int

const (
	Starting State = iota
	Active
	Restarting
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Restarting:
		return "restarting"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Key identifies a session by (sceneId, quality), the registry key per §3.
type Key struct {
	SceneID string
	Quality quality.Label
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.SceneID, k.Quality)
}

// Session is one running or startable transcoding context for a single
// (sceneId, quality) pair (Glossary "Session"). It combines the data the
// spec assigns to "Session" with the behavior the spec assigns to
// "SessionSupervisor": the two are owned 1:1 (§3 "Ownership" — Session
// owns its SegmentIndex, SessionSupervisor, and output directory), so
// this module models them as one value with its own internal mutex rather
// than two structs that would always be constructed and destroyed
// together.
type Session struct {
	ID        string
	Key       Key
	InputPath string
	OutputDir string

	SegmentDurSec float64
	StartSeg      int
	TotalSegments int
	SourceWidth   int
	SourceHeight  int
	DurationSec   float64
	Preset        quality.Preset

	Index *segment.Index

	mu           sync.RWMutex
	state        State
	startSec     float64
	producedEnd  int // timeline-absolute, exclusive upper bound of the contiguous completed run
	lastActivity time.Time
	lastError    string
	generation   int // bumped on every Restart, used to ignore stale finalize callbacks

	runner    *process.Runner // current generation's subprocess, for graceful Stop
	cancelRun func()          // stops the current monitor/sweep/watch goroutines
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// StartSec returns the timeline position this session's current runner
// generation began producing from.
func (s *Session) StartSec() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startSec
}

// ProducedEnd returns the exclusive upper bound of the contiguous range of
// Completed segments from StartSeg, i.e. the end of the producible window.
func (s *Session) ProducedEnd() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.producedEnd
}

// LastActivityAge returns how long it has been since Touch was last
// called, for the idle sweep and the /session/:key/status endpoint.
func (s *Session) LastActivityAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// Touch refreshes the last-activity timestamp (§4.4).
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func (s *Session) setFailed(errMsg string) {
	s.mu.Lock()
	s.state = Failed
	s.lastError = errMsg
	s.mu.Unlock()
}

// LastError returns the most recent recorded failure message, if any.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Status is the JSON-serializable snapshot backing GET /session/:key/status.
type Status struct {
	State             string  `json:"state"`
	StartSec          float64 `json:"startSec"`
	ProducedEnd       int     `json:"producedEnd"`
	Completed         int     `json:"completed"`
	Transcoding       int     `json:"transcoding"`
	Failed            int     `json:"failed"`
	Waiting           int     `json:"waiting"`
	LastActivityAgeMs int64   `json:"lastActivityAgeMs"`
}

// Snapshot builds the admin status view for this session.
func (s *Session) Snapshot() Status {
	summary := s.Index.Snapshot()
	return Status{
		State:             s.State().String(),
		StartSec:          s.StartSec(),
		ProducedEnd:       s.ProducedEnd(),
		Completed:         summary.Completed,
		Transcoding:       summary.Transcoding,
		Failed:            summary.Failed,
		Waiting:           summary.Waiting,
		LastActivityAgeMs: s.LastActivityAge().Milliseconds(),
	}
}

// SegmentView is one entry of GET /session/:key/segments.
type SegmentView struct {
	N         int    `json:"n"`
	State     string `json:"state"`
	Retries   int    `json:"retries"`
	LastError string `json:"lastError,omitempty"`
}

// SegmentViews returns every tracked segment for the admin segments endpoint.
func (s *Session) SegmentViews() []SegmentView {
	all := s.Index.Segments()
	out := make([]SegmentView, 0, len(all))
	for n, meta := range all {
		out = append(out, SegmentView{N: n, State: meta.State.String(), Retries: meta.Retries, LastError: meta.LastError})
	}
	return out
}
