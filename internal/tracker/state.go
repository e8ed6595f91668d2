// Package tracker keeps the per-repository state behind the boundary
// operations: the tracked root, a short-lived status cache, the filesystem
// watcher that invalidates it and the debounced change notification.
package tracker

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pders01/repowatch/internal/config"
	"github.com/pders01/repowatch/internal/git"
	"github.com/pders01/repowatch/internal/logging"
	"github.com/pders01/repowatch/internal/models"
)

// ErrClosed is returned by a State after Close
var ErrClosed = errors.New("tracker is closed")

// Phase is the lifecycle position of a State
type Phase int

const (
	// PhaseOpen means no repository root is tracked
	PhaseOpen Phase = iota
	// PhaseActive means a root is tracked
	PhaseActive
	// PhaseClosed is terminal
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

const (
	DefaultTTL      = 5 * time.Second
	DefaultDebounce = 500 * time.Millisecond
)

// cacheEntry is a snapshot together with the root it was computed against
// and the time it was stored. The three are replaced together.
type cacheEntry struct {
	status *models.RepositoryStatus
	root   string
	at     time.Time
}

// State is the context object shared by every boundary operation. Each
// logical field has its own lock, so a cache read never waits on a root
// change and the other way round.
type State struct {
	ttl          time.Duration
	debounce     time.Duration
	now          func() time.Time
	logger       *slog.Logger
	watch        config.WatchConfig
	emit         func(Event)
	startWatcher func(root string) (watcher, error)

	phaseMu sync.RWMutex
	phase   Phase

	rootMu sync.RWMutex
	root   string

	cacheMu sync.Mutex
	cache   *cacheEntry

	watchMu sync.Mutex
	watcher watcher

	emitMu   sync.Mutex
	lastEmit time.Time
}

// watcher is an armed filesystem watch
type watcher interface {
	Root() string
	Close()
}

// Option configures a State
type Option func(*State)

// WithTTL sets how long a stored snapshot stays fresh
func WithTTL(ttl time.Duration) Option {
	return func(s *State) { s.ttl = ttl }
}

// WithDebounce sets the minimum gap between two notifications
func WithDebounce(d time.Duration) Option {
	return func(s *State) { s.debounce = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *State) { s.logger = logger }
}

// WithWatch configures the filesystem watcher
func WithWatch(w config.WatchConfig) Option {
	return func(s *State) { s.watch = w }
}

// WithEmitter sets the sink that receives status-changed notifications
func WithEmitter(emit func(Event)) Option {
	return func(s *State) { s.emit = emit }
}

// NewState creates a State in the open phase
func NewState(opts ...Option) *State {
	s := &State{
		ttl:      DefaultTTL,
		debounce: DefaultDebounce,
		now:      time.Now,
		logger:   logging.Discard(),
		watch:    config.Defaults().Watch,
		emit:     func(Event) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.startWatcher == nil {
		s.startWatcher = func(root string) (watcher, error) {
			w, err := startFSWatcher(root, s.watch, s.logger, s.onFilesystemEvent)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}
	return s
}

// Phase returns the current lifecycle phase
func (s *State) Phase() Phase {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.phase
}

func (s *State) closed() bool {
	return s.Phase() == PhaseClosed
}

// setPhase moves between open and active; closed is never left
func (s *State) setPhase(p Phase) bool {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	if s.phase == PhaseClosed {
		return false
	}
	s.phase = p
	return true
}

// SetRepositoryRoot starts tracking root. An empty root stops tracking and
// tears the watcher down. The cache is emptied either way.
func (s *State) SetRepositoryRoot(root string) error {
	phase := PhaseActive
	if root == "" {
		phase = PhaseOpen
	}
	if !s.setPhase(phase) {
		return ErrClosed
	}

	s.rootMu.Lock()
	s.root = root
	s.rootMu.Unlock()

	s.InvalidateStatusCache()
	if root == "" {
		s.stopWatcher()
	}
	s.logger.Debug("repository root changed", "root", root)
	return nil
}

// RepositoryRoot returns the tracked root, ok is false when none is set
func (s *State) RepositoryRoot() (string, bool) {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.root, s.root != ""
}

// GetCachedStatus returns the stored snapshot while it is at most TTL old
// and was computed for the currently tracked root
func (s *State) GetCachedStatus() (*models.RepositoryStatus, bool) {
	root, _ := s.RepositoryRoot()
	now := s.now()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry := s.cache
	if entry == nil {
		return nil, false
	}
	if !sameRoot(entry.root, root) {
		// computed for a root that is no longer tracked
		s.cache = nil
		return nil, false
	}
	if now.Sub(entry.at) > s.ttl {
		return nil, false
	}
	return entry.status, true
}

// StoreStatusCache makes status the fresh snapshot. A snapshot computed for
// another root than the tracked one is dropped.
func (s *State) StoreStatusCache(status *models.RepositoryStatus) {
	if status == nil || s.closed() {
		return
	}
	root, _ := s.RepositoryRoot()
	if !sameRoot(status.RepositoryPath, root) {
		s.logger.Debug("dropping status for untracked root",
			"status_root", status.RepositoryPath, "root", root)
		return
	}

	entry := &cacheEntry{status: status, root: status.RepositoryPath, at: s.now()}

	s.cacheMu.Lock()
	s.cache = entry
	s.cacheMu.Unlock()
}

// InvalidateStatusCache empties the cache. It is idempotent.
func (s *State) InvalidateStatusCache() {
	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()
}

// EnsureWatcher arms a recursive watch on root unless one is already armed
// for it. A watch on another root is replaced.
func (s *State) EnsureWatcher(root string) error {
	return s.ensureWatcher(root, false)
}

// ensureTrackedWatcher is EnsureWatcher for the tracked root. It does
// nothing once root has been replaced by a later SetRepositoryRoot, whose
// caller arms the new root itself.
func (s *State) ensureTrackedWatcher(root string) error {
	return s.ensureWatcher(root, true)
}

func (s *State) ensureWatcher(root string, tracked bool) error {
	if s.closed() {
		return ErrClosed
	}
	if !s.watch.Enabled {
		return nil
	}

	s.watchMu.Lock()
	if s.closed() {
		// Close already ran stopWatcher or is waiting for watchMu
		s.watchMu.Unlock()
		return ErrClosed
	}
	if tracked {
		if current, _ := s.RepositoryRoot(); !sameRoot(current, root) {
			s.watchMu.Unlock()
			s.logger.Debug("not arming watcher for replaced root", "root", root, "tracked", current)
			return nil
		}
	}

	old := s.watcher
	if old != nil && sameRoot(old.Root(), root) {
		s.watchMu.Unlock()
		return nil
	}

	w, err := s.startWatcher(root)
	if err != nil {
		s.watcher = nil
	} else {
		s.watcher = w
	}
	s.watchMu.Unlock()

	// Close waits for the monitor goroutine, which runs observers that may
	// call back into the State
	if old != nil {
		old.Close()
	}

	if err != nil {
		return git.WatchFailure("watch repository", err)
	}
	s.logger.Debug("watcher armed", "root", root)
	return nil
}

// WatchedRoot returns the root of the armed watcher, or ""
func (s *State) WatchedRoot() string {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return ""
	}
	return s.watcher.Root()
}

func (s *State) stopWatcher() {
	s.watchMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()

	if w != nil {
		w.Close()
		s.logger.Debug("watcher stopped", "root", w.Root())
	}
}

// EmitStatusChanged notifies observers unless the previous notification
// went out less than the debounce interval ago. It reports whether the
// notification was delivered.
func (s *State) EmitStatusChanged() bool {
	if s.closed() {
		return false
	}
	now := s.now()

	s.emitMu.Lock()
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < s.debounce {
		s.emitMu.Unlock()
		s.logger.Debug("status notification debounced")
		return false
	}
	s.lastEmit = now
	s.emitMu.Unlock()

	root, _ := s.RepositoryRoot()
	s.emit(Event{Type: EventStatusChanged, Root: filepath.ToSlash(root), At: now})
	return true
}

// onFilesystemEvent runs on the monitor goroutine for every event
func (s *State) onFilesystemEvent(path string) {
	s.InvalidateStatusCache()
	s.EmitStatusChanged()
}

// Close stops the watcher and moves the State to its terminal phase
func (s *State) Close() error {
	s.phaseMu.Lock()
	if s.phase == PhaseClosed {
		s.phaseMu.Unlock()
		return nil
	}
	s.phase = PhaseClosed
	s.phaseMu.Unlock()

	s.stopWatcher()
	s.InvalidateStatusCache()
	return nil
}

func sameRoot(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(filepath.FromSlash(a)) == filepath.Clean(filepath.FromSlash(b))
}
