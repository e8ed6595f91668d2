package git

import (
	"context"
	"slices"
	"testing"

	"github.com/pders01/repowatch/internal/models"
	"github.com/pders01/repowatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorcelain(t *testing.T) {
	out := []byte("# branch.oid 1234abcd\x00" +
		"# branch.head feature/x\x00" +
		"# branch.upstream origin/feature/x\x00" +
		"# branch.ab +2 -1\x00" +
		"1 .M N... 100644 100644 100644 aaaa bbbb dir/a file.txt\x00" +
		"2 R. N... 100644 100644 100644 aaaa bbbb R100 new.txt\x00old.txt\x00" +
		"u UU N... 100644 100644 100644 100644 aaaa bbbb cccc conflict.txt\x00" +
		"? untracked.txt\x00" +
		"! ignored.log\x00")

	ps, err := parsePorcelain(out)
	require.NoError(t, err)

	assert.Equal(t, "feature/x", ps.head)
	assert.Equal(t, "1234abcd", ps.oid)
	assert.Equal(t, uint32(2), ps.ahead)
	assert.Equal(t, uint32(1), ps.behind)

	require.Len(t, ps.entries, 4)
	assert.Equal(t, porcelainEntry{kind: '1', x: '.', y: 'M', path: "dir/a file.txt"}, ps.entries[0])
	assert.Equal(t, porcelainEntry{kind: '2', x: 'R', y: '.', path: "new.txt", origPath: "old.txt"}, ps.entries[1])
	assert.Equal(t, porcelainEntry{kind: 'u', x: 'U', y: 'U', path: "conflict.txt"}, ps.entries[2])
	assert.Equal(t, porcelainEntry{kind: '?', path: "untracked.txt"}, ps.entries[3])
}

func TestParsePorcelainMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"short ordinary entry", "1 .M N...\x00"},
		{"rename without original path", "2 R. N... 100644 100644 100644 aaaa bbbb R100 new.txt"},
		{"bad ahead count", "# branch.ab +x -1\x00"},
		{"short untracked entry", "?\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePorcelain([]byte(tt.out))
			assert.Error(t, err)
		})
	}
}

func TestStatusFlagsClassify(t *testing.T) {
	tests := []struct {
		name    string
		entries []porcelainEntry
		want    models.FileChangeStatus
	}{
		{"untracked", []porcelainEntry{{kind: '?'}}, models.Untracked},
		{"staged addition", []porcelainEntry{{kind: '1', x: 'A', y: '.'}}, models.Untracked},
		{"added then deleted", []porcelainEntry{{kind: '1', x: 'A', y: 'D'}}, models.Untracked},
		{"deleted", []porcelainEntry{{kind: '1', x: '.', y: 'D'}}, models.Deleted},
		{"renamed and modified", []porcelainEntry{{kind: '2', x: 'R', y: 'M', origPath: "old"}}, models.Renamed("old")},
		{"copied", []porcelainEntry{{kind: '2', x: 'C', y: '.', origPath: "src"}}, models.Copied("src")},
		{"conflicted", []porcelainEntry{{kind: 'u', x: 'U', y: 'U'}}, models.Conflicted},
		{"modified", []porcelainEntry{{kind: '1', x: 'M', y: 'M'}}, models.Modified},
		{"type change", []porcelainEntry{{kind: '1', x: '.', y: 'T'}}, models.Modified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &statusFlags{}
			for _, e := range tt.entries {
				f.add(e)
			}
			got, ok := f.classify()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := (&statusFlags{}).classify()
	assert.False(t, ok)
}

func TestCollectStatusScenario(t *testing.T) {
	repo := testutil.NewEmptyGitRepo(t)
	repo.CreateFile("a.txt", "1")
	repo.Commit("add a")

	repo.CreateFile("a.txt", "2")
	repo.CreateFile("b.txt", "x")
	repo.Stage("b.txt")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)

	assert.Equal(t, []models.FileChange{{Path: "b.txt", Status: models.Added, Staged: true}}, status.StagedChanges)
	assert.Equal(t, []models.FileChange{{Path: "a.txt", Status: models.Modified, Staged: false}}, status.Changes)
	assert.Empty(t, status.Untracked)
	assert.Equal(t, "main", status.Branch())
	assert.False(t, status.IsDetached)
	assert.Zero(t, status.Ahead)
	assert.Zero(t, status.Behind)

	ctx := context.Background()
	working, err := WorkingDiff(ctx, repo.Path, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "1", working.OldContent)
	assert.Equal(t, "2", working.NewContent)
	assert.False(t, working.Binary)

	staged, err := StagedDiff(ctx, repo.Path, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "", staged.OldContent)
	assert.Equal(t, "x", staged.NewContent)
}

func TestCollectStatusStagedClassification(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("keep.txt", "keep\n")
	repo.CreateFile("gone.txt", "gone\n")
	repo.CreateFile("move.txt", "some content that is long enough to be detected as a rename\n")
	repo.Commit("seed")

	repo.CreateFile("keep.txt", "changed\n")
	repo.Stage("keep.txt")
	repo.Git("rm", "-q", "gone.txt")
	repo.Git("mv", "move.txt", "moved.txt")
	repo.CreateFile("fresh.txt", "fresh\n")
	repo.Stage("fresh.txt")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)

	byPath := make(map[string]models.FileChangeStatus)
	for _, c := range status.StagedChanges {
		assert.True(t, c.Staged)
		byPath[c.Path] = c.Status
	}

	assert.Equal(t, models.Modified, byPath["keep.txt"])
	assert.Equal(t, models.Deleted, byPath["gone.txt"])
	assert.Equal(t, models.Renamed("move.txt"), byPath["moved.txt"])
	assert.Equal(t, models.Added, byPath["fresh.txt"])
	assert.Empty(t, status.Changes)
	assert.Empty(t, status.Untracked)

	// staged classifications agree with what HEAD and the index hold
	r, err := Open(context.Background(), repo.Path)
	require.NoError(t, err)
	ctx := context.Background()
	for path, st := range byPath {
		_, inHead := r.ReadFromHead(ctx, path)
		_, inIndex := r.ReadFromIndex(ctx, path)
		switch st.Kind {
		case models.KindAdded:
			assert.False(t, inHead, path)
			assert.True(t, inIndex, path)
		case models.KindDeleted:
			assert.True(t, inHead, path)
			assert.False(t, inIndex, path)
		case models.KindModified:
			assert.True(t, inHead, path)
			assert.True(t, inIndex, path)
		}
	}
}

func TestCollectStatusUntrackedSorted(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	for _, name := range []string{"zeta.txt", "alpha.txt", "nested/b.txt", "nested/a.txt", "Mid.txt"} {
		repo.CreateFile(name, name)
	}

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Mid.txt", "alpha.txt", "nested/a.txt", "nested/b.txt", "zeta.txt"}, status.Untracked)
	assert.True(t, slices.IsSorted(status.Untracked))
	assert.Empty(t, status.StagedChanges)
	assert.Empty(t, status.Changes)
}

func TestCollectStatusWorktreeDeletion(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.RemoveFile("README.md")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)
	assert.Equal(t, []models.FileChange{{Path: "README.md", Status: models.Deleted}}, status.Changes)
}

func TestCollectStatusDetached(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.Git("checkout", "-q", "--detach")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)
	assert.True(t, status.IsDetached)
	assert.Nil(t, status.CurrentBranch)
	assert.Equal(t, "", status.Branch())
}

func TestCollectStatusUnbornBranch(t *testing.T) {
	repo := testutil.NewEmptyGitRepo(t)
	repo.CreateFile("new.txt", "new")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)
	assert.False(t, status.IsDetached)
	require.NotNil(t, status.CurrentBranch)
	assert.Equal(t, "main", *status.CurrentBranch)
	assert.Equal(t, []string{"new.txt"}, status.Untracked)
}

func TestCollectStatusAheadBehind(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.Git("branch", "base")
	repo.CreateFile("one.txt", "1")
	repo.Commit("one")
	repo.CreateFile("two.txt", "2")
	repo.Commit("two")
	repo.Git("branch", "--set-upstream-to=base")

	status, err := CollectStatus(context.Background(), repo.Path)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), status.Ahead)
	assert.Equal(t, uint32(0), status.Behind)
}

func TestCollectStatusNotRepository(t *testing.T) {
	_, err := CollectStatus(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRepository)
	assert.Equal(t, "Git repository is not available", Message(err))
}

func TestFileStatuses(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("tracked.txt", "v1")
	repo.CreateFile("doomed.txt", "bye")
	repo.Commit("seed")

	repo.CreateFile("tracked.txt", "v2")
	repo.RemoveFile("doomed.txt")
	repo.CreateFile("new.txt", "hi")
	repo.CreateFile("staged.txt", "hi")
	repo.Stage("staged.txt")

	paths := []string{"tracked.txt", "doomed.txt", "new.txt", "staged.txt", "README.md"}
	got, err := FileStatuses(context.Background(), repo.Path, paths)
	require.NoError(t, err)

	assert.Equal(t, []models.PathStatus{
		{Path: "tracked.txt", Status: models.Modified},
		{Path: "doomed.txt", Status: models.Deleted},
		{Path: "new.txt", Status: models.Untracked},
		{Path: "staged.txt", Status: models.Untracked},
		// unchanged paths fall back to Modified
		{Path: "README.md", Status: models.Modified},
	}, got)
}

// conflictedRepo leaves c.txt in an unresolved merge of branch other into main
func conflictedRepo(t *testing.T) *testutil.TempGitRepo {
	t.Helper()
	repo := testutil.NewTempGitRepo(t)
	repo.CreateFile("c.txt", "base\n")
	repo.Commit("add c")

	repo.Git("checkout", "-q", "-b", "other")
	repo.CreateFile("c.txt", "theirs\n")
	repo.Commit("change c on other")

	repo.Git("checkout", "-q", "main")
	repo.CreateFile("c.txt", "ours\n")
	repo.Commit("change c on main")

	_, err := repo.TryGit("merge", "other")
	require.Error(t, err, "merge must stop on the conflict")
	return repo
}

func TestCollectStatusConflicted(t *testing.T) {
	repo := conflictedRepo(t)
	ctx := context.Background()

	status, err := CollectStatus(ctx, repo.Path)
	require.NoError(t, err)
	assert.Equal(t, []models.FileChange{
		{Path: "c.txt", Status: models.Conflicted, Staged: false},
	}, status.Changes)
	assert.Empty(t, status.StagedChanges)
	assert.Empty(t, status.Untracked)

	got, err := FileStatuses(ctx, repo.Path, []string{"c.txt", "README.md"})
	require.NoError(t, err)
	assert.Equal(t, []models.PathStatus{
		{Path: "c.txt", Status: models.Conflicted},
		{Path: "README.md", Status: models.Modified},
	}, got)
}

func TestFileStatusesEmpty(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)

	got, err := FileStatuses(context.Background(), repo.Path, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
