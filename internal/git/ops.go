package git

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/pders01/repowatch/internal/models"
	"github.com/spf13/afero"
)

// StageFile adds path to the index
func StageFile(ctx context.Context, root, path string) error {
	repo, err := Open(ctx, root)
	if err != nil {
		return err
	}
	if _, err := repo.git("add", "--", cleanPath(path)).run(ctx); err != nil {
		return underlying("stage file", err)
	}
	return nil
}

// UnstageFile resets the index entry of path to match HEAD. On an unborn
// branch the entry is removed from the index.
func UnstageFile(ctx context.Context, root, path string) error {
	repo, err := Open(ctx, root)
	if err != nil {
		return err
	}
	return repo.resetPaths(ctx, cleanPath(path))
}

// StageAll stages every change in the work tree and returns the number of
// newly staged paths.
func StageAll(ctx context.Context, root string) (uint32, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return 0, err
	}

	before, err := repo.stagedCount(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := repo.git("add", "-A").run(ctx); err != nil {
		return 0, underlying("stage all", err)
	}
	after, err := repo.stagedCount(ctx)
	if err != nil {
		return 0, err
	}

	if after < before {
		return 0, nil
	}
	return after - before, nil
}

// UnstageAll resets the whole index to HEAD and returns how many paths were
// staged before.
func UnstageAll(ctx context.Context, root string) (uint32, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return 0, err
	}

	before, err := repo.stagedCount(ctx)
	if err != nil {
		return 0, err
	}

	if repo.headCommit(ctx) == "" {
		_, err = repo.git("read-tree", "--empty").run(ctx)
	} else {
		_, err = repo.git("reset", "-q", "HEAD").run(ctx)
	}
	if err != nil {
		return 0, underlying("unstage all", err)
	}
	return before, nil
}

// DiscardChanges throws away local changes for each path. Untracked paths
// are deleted from disk; tracked paths are reset in the index and restored
// from HEAD. The first failure aborts the batch.
func DiscardChanges(ctx context.Context, root string, paths []string) error {
	repo, err := Open(ctx, root)
	if err != nil {
		return err
	}

	for _, p := range paths {
		path := cleanPath(p)

		untracked, err := repo.isUntracked(ctx, path)
		if err != nil {
			return err
		}
		if untracked {
			if err := repo.removeFromDisk(path); err != nil {
				return err
			}
			continue
		}

		if err := repo.resetPaths(ctx, path); err != nil {
			return err
		}
		if !repo.inHead(ctx, path) {
			// staged addition: it is untracked now and stays on disk
			continue
		}
		if _, err := repo.git("checkout", "-q", "-f", "HEAD", "--", path).run(ctx); err != nil {
			return underlying("discard changes", err)
		}
	}
	return nil
}

// CommitStaged writes the index as a tree and commits it on top of HEAD
// using the identity configured for the repository.
func CommitStaged(ctx context.Context, root, message string) (string, error) {
	const op = "commit"

	if strings.TrimSpace(message) == "" {
		return "", invalidInput(op, "Commit message must not be empty")
	}

	repo, err := Open(ctx, root)
	if err != nil {
		return "", err
	}

	status, err := repo.collectStatus(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range status.Changes {
		if c.Status.Kind == models.KindConflicted {
			return "", invalidInput(op, "Unresolved merge conflicts; resolve and stage them before committing")
		}
	}
	if len(status.StagedChanges) == 0 {
		return "", invalidInput(op, "No staged changes to commit")
	}

	tree, err := repo.git("write-tree").output(ctx)
	if err != nil {
		return "", underlying(op, err)
	}

	parent := repo.headCommit(ctx)
	args := []string{"commit-tree", tree}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	cmd := repo.git(args...)
	cmd.stdin = strings.NewReader(message)
	commit, err := cmd.output(ctx)
	if err != nil {
		return "", underlying(op, err)
	}

	// HEAD is symbolic on a branch, so this advances the branch itself
	update := []string{"update-ref", "-m", "commit: " + summary(message), "HEAD", commit}
	if parent != "" {
		update = append(update, parent)
	}
	if _, err := repo.git(update...).run(ctx); err != nil {
		return "", underlying(op, err)
	}

	return commit, nil
}

// resetPaths resets the index entries of paths to HEAD
func (r *Repository) resetPaths(ctx context.Context, paths ...string) error {
	var err error
	if r.headCommit(ctx) == "" {
		args := append([]string{"rm", "-r", "-q", "--cached", "--ignore-unmatch", "--"}, paths...)
		_, err = r.git(args...).run(ctx)
	} else {
		args := append([]string{"reset", "-q", "HEAD", "--"}, paths...)
		_, err = r.git(args...).run(ctx)
	}
	if err != nil {
		return underlying("unstage", err)
	}
	return nil
}

// isUntracked reports whether path is known to neither the index nor HEAD
func (r *Repository) isUntracked(ctx context.Context, path string) (bool, error) {
	out, err := r.git("ls-files", "-z", "--", path).run(ctx)
	if err != nil {
		return false, underlying("ls-files", err)
	}
	if len(out) > 0 {
		return false, nil
	}
	return !r.inHead(ctx, path), nil
}

// inHead reports whether HEAD contains path, as a file or a directory
func (r *Repository) inHead(ctx context.Context, path string) bool {
	if r.headCommit(ctx) == "" {
		return false
	}
	out, err := r.git("ls-tree", "-z", "--name-only", "HEAD", "--", path).run(ctx)
	return err == nil && len(out) > 0
}

func (r *Repository) removeFromDisk(path string) error {
	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return ioFailure("discard changes", err)
	}
	if !exists {
		return nil
	}
	if err := r.fs.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioFailure("discard changes", err)
	}
	return nil
}

func (r *Repository) stagedCount(ctx context.Context) (uint32, error) {
	status, err := r.collectStatus(ctx)
	if err != nil {
		return 0, err
	}
	return uint32(len(status.StagedChanges)), nil
}

// summary returns the first line of a commit message
func summary(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(line)
}
