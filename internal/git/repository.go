package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Repository is an opened work tree. It is cheap and is created per call;
// no state is kept between operations.
type Repository struct {
	root string
	fs   afero.Fs
}

// Root returns the absolute work tree root
func (r *Repository) Root() string {
	return r.root
}

// git builds a command rooted at the work tree
func (r *Repository) git(args ...string) *command {
	return newCommand(r.root, args...)
}

// Open opens the repository whose work tree contains root
func Open(ctx context.Context, root string) (*Repository, error) {
	const op = "open repository"

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, noRepository(op, err)
		}
		return nil, ioFailure(op, err)
	}
	if !info.IsDir() {
		return nil, noRepository(op, fmt.Errorf("%s is not a directory", root))
	}

	top, err := newCommand(root, "rev-parse", "--show-toplevel").output(ctx)
	if err != nil {
		if isNotRepository(err) {
			return nil, noRepository(op, err)
		}
		return nil, underlying(op, err)
	}

	return newRepository(filepath.FromSlash(top)), nil
}

func newRepository(root string) *Repository {
	return &Repository{
		root: root,
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
	}
}

// Detect discovers the repository containing path and returns its work tree
// root. A path outside any repository yields "" and no error.
func Detect(ctx context.Context, path string) (string, error) {
	const op = "detect repository"

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ioFailure(op, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", ioFailure(op, err)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	top, err := newCommand(abs, "rev-parse", "--show-toplevel").output(ctx)
	if err != nil {
		if isNotRepository(err) {
			return "", nil
		}
		return "", underlying(op, err)
	}
	return filepath.FromSlash(top), nil
}

// Init creates a repository at path with "main" as the initial branch and
// returns its work tree root.
func Init(ctx context.Context, path string) (string, error) {
	const op = "init repository"

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ioFailure(op, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", ioFailure(op, err)
	}

	if _, err := newCommand(abs, "init", "-q", "--initial-branch=main").run(ctx); err != nil {
		return "", underlying(op, err)
	}

	repo, err := Open(ctx, abs)
	if err != nil {
		return "", err
	}
	return repo.root, nil
}

// headCommit returns the commit HEAD points to, or "" on an unborn branch
func (r *Repository) headCommit(ctx context.Context) string {
	out, err := r.git("rev-parse", "-q", "--verify", "HEAD^{commit}").output(ctx)
	if err != nil {
		return ""
	}
	return out
}

// cleanPath converts a caller supplied path to git's root-relative,
// forward-slash form.
func cleanPath(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	return strings.TrimSuffix(p, "/")
}
