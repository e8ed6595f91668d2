package tracker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pders01/repowatch/internal/config"
	"github.com/pders01/repowatch/internal/git"
	"github.com/pders01/repowatch/internal/models"
	"github.com/pders01/repowatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventSink) observe(ev Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventSink) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

// newTestService returns a Service without debounce or watcher so every
// mutation produces exactly one event
func newTestService(t *testing.T, opts ...Option) (*Service, *eventSink) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Watch.Enabled = false
	cfg.Watch.Debounce = 0

	svc := NewService(&cfg, nil, opts...)
	t.Cleanup(func() { svc.Close() })

	sink := &eventSink{}
	svc.Subscribe(sink.observe)
	return svc, sink
}

func TestServiceRequiresDetection(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetStatus(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrNoRepository)
	assert.Equal(t, "Git repository is not detected yet", git.Message(err))

	assert.ErrorIs(t, svc.StageFile(ctx, "a.txt"), git.ErrNoRepository)
	_, err = svc.GetHistory(ctx, 0, 10)
	assert.ErrorIs(t, err, git.ErrNoRepository)
	_, err = svc.GetFileDiffs(ctx, []string{"a.txt"}, false)
	assert.ErrorIs(t, err, git.ErrNoRepository)
}

func TestServiceDetect(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("sub/file.txt", "x")
	svc, sink := newTestService(t)
	ctx := context.Background()

	root, err := svc.DetectRepository(ctx, filepath.Join(repo.Path, "sub"))
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(repo.Path), root)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, PhaseActive, svc.State().Phase())

	root, err = svc.DetectRepository(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "", root)
	_, ok := svc.State().RepositoryRoot()
	assert.False(t, ok)
	assert.Equal(t, PhaseOpen, svc.State().Phase())
}

func TestServiceConcurrentDetectKeepsWatcherOnTrackedRoot(t *testing.T) {
	repoA := testutil.NewTempGitRepo(t)
	repoB := testutil.NewTempGitRepo(t)
	cfg := config.Defaults()
	svc := NewService(&cfg, nil)
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		path := repoA.Path
		if i%2 == 1 {
			path = repoB.Path
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DetectRepository(ctx, path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	root, ok := svc.State().RepositoryRoot()
	require.True(t, ok)
	assert.Equal(t, root, svc.State().WatchedRoot())
}

func TestServiceInit(t *testing.T) {
	svc, sink := newTestService(t)
	dir := filepath.Join(t.TempDir(), "project")

	root, err := svc.InitRepository(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.Equal(t, 1, sink.count())

	status, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", status.Branch())
	assert.True(t, status.IsClean())
}

func TestServiceStatusCache(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	clock := newFakeClock()
	svc, _ := newTestService(t, WithClock(clock.Now))
	ctx := context.Background()

	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)

	first, err := svc.GetStatus(ctx)
	require.NoError(t, err)

	// a change on disk is not visible while the snapshot is fresh
	repo.CreateFile("new.txt", "x")
	clock.Advance(4 * time.Second)
	second, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Empty(t, second.Untracked)

	clock.Advance(2 * time.Second)
	third, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, []string{"new.txt"}, third.Untracked)
}

func TestServiceRefreshBypassesCache(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	svc, sink := newTestService(t)
	ctx := context.Background()

	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)
	first, err := svc.GetStatus(ctx)
	require.NoError(t, err)

	repo.CreateFile("new.txt", "x")
	refreshed, err := svc.RefreshStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.txt"}, refreshed.Untracked)
	assert.Equal(t, 2, sink.count())

	cached, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Same(t, refreshed, cached)
	assert.NotSame(t, first, cached)
}

func TestServiceMutationsInvalidateAndNotify(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	svc, sink := newTestService(t)
	ctx := context.Background()

	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)
	repo.CreateFile("a.txt", "a")
	repo.CreateFile("README.md", "edited\n")

	before := sink.count()
	_, err = svc.GetStatus(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.StageFile(ctx, "a.txt"))
	_, ok := svc.State().GetCachedStatus()
	assert.False(t, ok, "stage invalidates")

	status, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.FileChange{{Path: "a.txt", Status: models.Added, Staged: true}}, status.StagedChanges)

	require.NoError(t, svc.UnstageFile(ctx, "a.txt"))
	n, err := svc.StageAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
	n, err = svc.UnstageAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
	require.NoError(t, svc.DiscardChanges(ctx, []string{"a.txt", "README.md"}))

	assert.Equal(t, before+5, sink.count())

	status, err = svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsClean())
}

func TestServiceCommitAndHistory(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	svc, sink := newTestService(t)
	ctx := context.Background()

	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)

	_, err = svc.Commit(ctx, "nothing")
	assert.ErrorIs(t, err, git.ErrInvalidInput)

	repo.CreateFile("feature.txt", "feature\n")
	require.NoError(t, svc.StageFile(ctx, "feature.txt"))
	count := sink.count()

	id, err := svc.Commit(ctx, "Add feature")
	require.NoError(t, err)
	assert.Equal(t, repo.Head(), id)
	assert.Equal(t, count+1, sink.count())

	history, err := svc.GetHistory(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Add feature", history[1].Message)
	assert.Equal(t, id, history[1].Hash)
}

func TestServiceDiffs(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("a.txt", "1")
	repo.Commit("add a")
	repo.CreateFile("a.txt", "2")
	repo.CreateFile("b.txt", "x")
	repo.Stage("b.txt")

	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)

	working, err := svc.GetFileDiff(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "1", working.OldContent)
	assert.Equal(t, "2", working.NewContent)

	staged, err := svc.GetStagedDiff(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "", staged.OldContent)
	assert.Equal(t, "x", staged.NewContent)

	results, err := svc.GetFileDiffs(ctx, []string{"a.txt", "b.txt", "README.md"}, false)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, path := range []string{"a.txt", "b.txt", "README.md"} {
		assert.Equal(t, path, results[i].Path)
		require.NotNil(t, results[i].Diff, path)
		assert.Empty(t, results[i].Error)
	}
	assert.Equal(t, "x", results[1].Diff.NewContent)

	results, err = svc.GetFileDiffs(ctx, []string{"b.txt"}, true)
	require.NoError(t, err)
	assert.Equal(t, "x", results[0].Diff.NewContent)
}

func TestServiceFileStatuses(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("new.txt", "x")
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)

	got, err := svc.GetFileStatuses(ctx, []string{"new.txt"})
	require.NoError(t, err)
	assert.Equal(t, []models.PathStatus{{Path: "new.txt", Status: models.Untracked}}, got)
}

func TestServiceObservers(t *testing.T) {
	svc, sink := newTestService(t)

	id := svc.Subscribe(func(Event) { panic("observer bug") })
	assert.Len(t, id, 36)
	assert.Equal(t, 2, svc.observers.len())

	assert.True(t, svc.State().EmitStatusChanged())
	assert.Equal(t, 1, sink.count(), "a panicking observer does not stop delivery")

	assert.True(t, svc.Unsubscribe(id))
	assert.False(t, svc.Unsubscribe(id))
	assert.Equal(t, 1, svc.observers.len())
}

func TestServiceWatcherNotifiesOnChange(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	cfg := config.Defaults()
	cfg.Watch.Debounce = 0
	svc := NewService(&cfg, nil)
	t.Cleanup(func() { svc.Close() })

	sink := &eventSink{}
	svc.Subscribe(sink.observe)
	ctx := context.Background()

	_, err := svc.DetectRepository(ctx, repo.Path)
	require.NoError(t, err)
	assert.Equal(t, repo.Path, svc.State().WatchedRoot())

	_, err = svc.GetStatus(ctx)
	require.NoError(t, err)
	_, ok := svc.State().GetCachedStatus()
	require.True(t, ok)

	start := sink.count()
	repo.CreateFile("touched.txt", "x")

	require.Eventually(t, func() bool { return sink.count() > start }, 2*time.Second, 10*time.Millisecond)
	_, ok = svc.State().GetCachedStatus()
	assert.False(t, ok)

	require.NoError(t, svc.Close())
	assert.Equal(t, "", svc.State().WatchedRoot())
	_, err = svc.GetStatus(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
