package tracker

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/pders01/repowatch/internal/config"
	"github.com/pders01/repowatch/internal/git"
	"github.com/pders01/repowatch/internal/logging"
	"github.com/pders01/repowatch/internal/models"
)

// Service is the request/response surface over a tracked repository. The
// CLI and the HTTP server both go through it.
type Service struct {
	state     *State
	observers *observers
	logger    *slog.Logger
	workers   int
}

// NewService builds a Service from cfg. Extra options are applied to the
// underlying State after the config derived ones.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Service{
		observers: newObservers(logger),
		logger:    logger,
		workers:   max(cfg.Workers, 1),
	}

	base := []Option{
		WithTTL(cfg.Cache.TTL),
		WithDebounce(cfg.Watch.Debounce),
		WithWatch(cfg.Watch),
		WithLogger(logger),
		WithEmitter(s.observers.notify),
	}
	s.state = NewState(append(base, opts...)...)
	return s
}

// State exposes the tracking state
func (s *Service) State() *State {
	return s.state
}

// Subscribe registers fn for status-changed notifications and returns an id
// for Unsubscribe. fn runs on the emitting goroutine and must not block; it
// may call back into the Service.
func (s *Service) Subscribe(fn func(Event)) string {
	return s.observers.add(fn)
}

// Unsubscribe removes an observer; it reports whether id was registered
func (s *Service) Unsubscribe(id string) bool {
	return s.observers.remove(id)
}

// Close releases the watcher. The Service is unusable afterwards.
func (s *Service) Close() error {
	return s.state.Close()
}

// root returns the tracked root or a NoRepository error
func (s *Service) root(op string) (string, error) {
	if s.state.closed() {
		return "", ErrClosed
	}
	root, ok := s.state.RepositoryRoot()
	if !ok {
		return "", git.NotDetected(op)
	}
	return root, nil
}

// changed runs after every successful mutation
func (s *Service) changed() {
	s.state.InvalidateStatusCache()
	s.state.EmitStatusChanged()
}

// DetectRepository finds the repository containing path and starts
// tracking it. Outside any repository tracking stops and "" is returned.
func (s *Service) DetectRepository(ctx context.Context, path string) (string, error) {
	root, err := git.Detect(ctx, path)
	if err != nil {
		return "", err
	}

	if root == "" {
		if err := s.state.SetRepositoryRoot(""); err != nil {
			return "", err
		}
		s.logger.Info("no repository detected", "path", path)
		return "", nil
	}

	if err := s.track(root); err != nil {
		return "", err
	}
	s.logger.Info("repository detected", "root", root)
	return filepath.ToSlash(root), nil
}

// InitRepository creates a repository at path and starts tracking it
func (s *Service) InitRepository(ctx context.Context, path string) (string, error) {
	root, err := git.Init(ctx, path)
	if err != nil {
		return "", err
	}
	if err := s.track(root); err != nil {
		return "", err
	}
	s.logger.Info("repository initialized", "root", root)
	return filepath.ToSlash(root), nil
}

func (s *Service) track(root string) error {
	if err := s.state.SetRepositoryRoot(root); err != nil {
		return err
	}
	if err := s.state.ensureTrackedWatcher(root); err != nil {
		return err
	}
	s.state.EmitStatusChanged()
	return nil
}

// GetStatus returns the cached snapshot when fresh and recomputes it
// otherwise
func (s *Service) GetStatus(ctx context.Context) (*models.RepositoryStatus, error) {
	if cached, ok := s.state.GetCachedStatus(); ok {
		return cached, nil
	}

	root, err := s.root("get status")
	if err != nil {
		return nil, err
	}
	status, err := git.CollectStatus(ctx, root)
	if err != nil {
		return nil, err
	}
	s.state.StoreStatusCache(status)

	if err := s.state.ensureTrackedWatcher(root); err != nil {
		return nil, err
	}
	return status, nil
}

// RefreshStatus recomputes the snapshot regardless of the cache and
// notifies observers
func (s *Service) RefreshStatus(ctx context.Context) (*models.RepositoryStatus, error) {
	root, err := s.root("refresh status")
	if err != nil {
		return nil, err
	}
	status, err := git.CollectStatus(ctx, root)
	if err != nil {
		return nil, err
	}
	s.state.StoreStatusCache(status)
	s.state.EmitStatusChanged()
	return status, nil
}

func (s *Service) GetFileStatuses(ctx context.Context, paths []string) ([]models.PathStatus, error) {
	root, err := s.root("get file statuses")
	if err != nil {
		return nil, err
	}
	return git.FileStatuses(ctx, root, paths)
}

func (s *Service) StageFile(ctx context.Context, path string) error {
	root, err := s.root("stage file")
	if err != nil {
		return err
	}
	if err := git.StageFile(ctx, root, path); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Service) UnstageFile(ctx context.Context, path string) error {
	root, err := s.root("unstage file")
	if err != nil {
		return err
	}
	if err := git.UnstageFile(ctx, root, path); err != nil {
		return err
	}
	s.changed()
	return nil
}

// StageAll stages everything and returns the number of newly staged paths
func (s *Service) StageAll(ctx context.Context) (uint32, error) {
	root, err := s.root("stage all")
	if err != nil {
		return 0, err
	}
	n, err := git.StageAll(ctx, root)
	if err != nil {
		return 0, err
	}
	s.changed()
	return n, nil
}

// UnstageAll empties the staging area and returns how many paths it held
func (s *Service) UnstageAll(ctx context.Context) (uint32, error) {
	root, err := s.root("unstage all")
	if err != nil {
		return 0, err
	}
	n, err := git.UnstageAll(ctx, root)
	if err != nil {
		return 0, err
	}
	s.changed()
	return n, nil
}

// DiscardChanges stops at the first failing path. Paths handled before the
// failure stay discarded, so the cache is dropped in both cases.
func (s *Service) DiscardChanges(ctx context.Context, paths []string) error {
	root, err := s.root("discard changes")
	if err != nil {
		return err
	}
	if err := git.DiscardChanges(ctx, root, paths); err != nil {
		s.state.InvalidateStatusCache()
		return err
	}
	s.changed()
	return nil
}

// Commit commits the staging area and returns the new commit id
func (s *Service) Commit(ctx context.Context, message string) (string, error) {
	root, err := s.root("commit")
	if err != nil {
		return "", err
	}
	id, err := git.CommitStaged(ctx, root, message)
	if err != nil {
		return "", err
	}
	s.logger.Info("committed", "root", root, "commit", models.ShortHash(id))
	s.changed()
	return id, nil
}

// GetHistory lists commits oldest first
func (s *Service) GetHistory(ctx context.Context, offset, limit uint32) ([]models.CommitRecord, error) {
	root, err := s.root("get history")
	if err != nil {
		return nil, err
	}
	return git.ReadHistory(ctx, root, offset, limit)
}

// GetFileDiff compares HEAD with the working copy of path
func (s *Service) GetFileDiff(ctx context.Context, path string) (*models.Diff, error) {
	root, err := s.root("get file diff")
	if err != nil {
		return nil, err
	}
	return git.WorkingDiff(ctx, root, path)
}

// GetStagedDiff compares HEAD with the staged content of path
func (s *Service) GetStagedDiff(ctx context.Context, path string) (*models.Diff, error) {
	root, err := s.root("get staged diff")
	if err != nil {
		return nil, err
	}
	return git.StagedDiff(ctx, root, path)
}

// GetFileDiffs diffs several paths concurrently. A failing path is reported
// in its result entry and does not affect the others.
func (s *Service) GetFileDiffs(ctx context.Context, paths []string, staged bool) ([]models.DiffResult, error) {
	root, err := s.root("get file diffs")
	if err != nil {
		return nil, err
	}

	diff := git.WorkingDiff
	if staged {
		diff = git.StagedDiff
	}

	results := make([]models.DiffResult, len(paths))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, path := range paths {
		p.Go(func() {
			d, err := diff(ctx, root, path)
			if err != nil {
				s.logger.Debug("diff failed", "path", path, "error", err)
				results[i] = models.DiffResult{Path: path, Error: git.Message(err)}
				return
			}
			results[i] = models.DiffResult{Path: path, Diff: d}
		})
	}
	p.Wait()

	return results, nil
}
