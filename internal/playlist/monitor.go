package playlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mantonx/hlscore/internal/logx"
	"github.com/mantonx/hlscore/internal/segment"
)

var segmentFileRE = regexp.MustCompile(`^segment_(\d+)\.ts$`)

// Monitor watches one runner generation's source directory for finalized
// segment files and renames them, from the runner's 0-based numbering onto
// the timeline-absolute numbering, into the session's shared final
// directory. sourceDir and finalDir are distinct so that a seek-driven
// restart's new runner generation — which also writes segment_000.ts,
// segment_001.ts, … with -start_number 0 -y — never overwrites a prior
// generation's already-finalized segments sitting in finalDir (§4.3).
// Grounded on fsnotify (a genuine teacher dependency) for the primary
// detection path; falls back to polling when fsnotify cannot be set up,
// per Design Notes §9's instruction to prefer notifications and fall back
// to polling only when unavailable.
type Monitor struct {
	sourceDir string
	finalDir  string
	startSeg  int
	index     *segment.Index
	log       logx.Logger

	pollInterval time.Duration
	onFinalize   func(timelineN int)

	mu      sync.Mutex
	seen    map[int]bool // runner-local k already renamed
	highest int          // highest runner-local k observed as written (not yet finalized)
}

// OnFinalize registers a callback invoked with the timeline-absolute
// segment number every time a segment is finalized. Used by
// SessionSupervisor to track the producible window without re-deriving it
// from the SegmentIndex. Must be called before Run.
func (m *Monitor) OnFinalize(fn func(timelineN int)) {
	m.onFinalize = fn
}

// New constructs a Monitor for one runner generation. sourceDir is the
// generation's own scratch directory (where the transcoder writes
// segment_000.ts, segment_001.ts, …); finalDir is the session's shared
// output directory that finalized segments are renamed into. startSeg is
// the timeline-absolute number the runner's segment_000.ts corresponds to.
func New(sourceDir, finalDir string, startSeg int, index *segment.Index, log logx.Logger) *Monitor {
	return &Monitor{
		sourceDir:    sourceDir,
		finalDir:     finalDir,
		startSeg:     startSeg,
		index:        index,
		log:          log,
		pollInterval: 250 * time.Millisecond,
		seen:         make(map[int]bool),
	}
}

// Run watches the directory until ctx is cancelled. A file segment_{k}.ts
// is considered finalized only once segment_{k+1}.ts appears (§4.3's
// detection policy (a): "the transcoder writes the next-numbered file,
// implying k is closed") — never on the first write event for k itself.
func (m *Monitor) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.Warn("fsnotify unavailable, falling back to polling", "error", err)
		m.pollLoop(ctx)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(m.sourceDir); err != nil {
		m.log.Warn("fsnotify watch add failed, falling back to polling", "error", err)
		m.pollLoop(ctx)
		return
	}

	m.scanOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				m.scanOnce()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (m *Monitor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	m.scanOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanOnce()
		}
	}
}

// scanOnce lists the output directory, determines which runner-local
// segment numbers are now safely finalized, and renames+marks each.
func (m *Monitor) scanOnce() {
	entries, err := os.ReadDir(m.sourceDir)
	if err != nil {
		return
	}

	present := make(map[int]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := segmentFileRE.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		k, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		present[k] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	maxK := -1
	for k := range present {
		if k > maxK {
			maxK = k
		}
	}
	// Every k strictly less than maxK is finalized: a later-numbered file
	// exists, implying k was closed. The highest-numbered file present is
	// still being written and is never finalized on this pass.
	for k := 0; k < maxK; k++ {
		if !present[k] || m.seen[k] {
			continue
		}
		if err := m.finalize(k); err != nil {
			m.log.Warn("finalize segment failed", "k", k, "error", err)
			continue
		}
		m.seen[k] = true
	}
}

// finalize renames the runner's segment_{k}.ts out of sourceDir into
// finalDir as the timeline-absolute segment_{N}.ts (N = startSeg + k) and
// marks it Completed. Must be called with m.mu held.
func (m *Monitor) finalize(k int) error {
	n := m.startSeg + k
	src := filepath.Join(m.sourceDir, fmt.Sprintf("segment_%03d.ts", k))
	final := filepath.Join(m.finalDir, fmt.Sprintf("segment_%03d.ts", n))

	// Always a rename, even when sourceDir == finalDir and k == n (the
	// common non-restarted case): this is a move on the same filesystem,
	// never a copy (§4.3), and cross-directory renames stay within the
	// session's own output tree.
	if err := os.Rename(src, final); err != nil {
		return err
	}

	m.index.Mark(n, segment.Completed, func(meta *segment.Meta) {
		meta.CompletedAt = time.Now()
	})
	m.log.Debug("segment finalized", "runnerLocal", k, "timelineAbsolute", n)
	if m.onFinalize != nil {
		m.onFinalize(n)
	}
	return nil
}
