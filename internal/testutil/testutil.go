package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TempGitRepo is a temporary git repository for testing
type TempGitRepo struct {
	Path string
	T    *testing.T
}

// NewTempGitRepo creates a repository on branch main with one commit
// containing README.md
func NewTempGitRepo(t *testing.T) *TempGitRepo {
	t.Helper()

	repo := NewEmptyGitRepo(t)
	repo.CreateFile("README.md", "# Test Repository\n")
	repo.Commit("Initial commit")
	return repo
}

// NewEmptyGitRepo creates a repository without any commit
func NewEmptyGitRepo(t *testing.T) *TempGitRepo {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "repowatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	// macOS hands out /var paths that git reports as /private/var
	if resolved, err := filepath.EvalSymlinks(tmpDir); err == nil {
		tmpDir = resolved
	}

	repo := &TempGitRepo{Path: tmpDir, T: t}
	t.Cleanup(repo.Cleanup)

	repo.Git("init", "-q", "--initial-branch=main")
	// Configure git user (required for commits)
	repo.Git("config", "user.name", "Test User")
	repo.Git("config", "user.email", "test@example.com")
	repo.Git("config", "commit.gpgsign", "false")

	return repo
}

// Cleanup removes the temporary git repository
func (r *TempGitRepo) Cleanup() {
	r.T.Helper()
	if err := os.RemoveAll(r.Path); err != nil {
		r.T.Errorf("failed to cleanup temp repo: %v", err)
	}
}

// Git runs git in the repository and returns trimmed stdout
func (r *TempGitRepo) Git(args ...string) string {
	r.T.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Path
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.T.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// TryGit runs git like Git but hands a failure back to the caller, for
// commands such as a conflicting merge that are expected to exit non-zero
func (r *TempGitRepo) TryGit(args ...string) (string, error) {
	r.T.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Path
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// CreateFile creates or overwrites a file in the repository
func (r *TempGitRepo) CreateFile(name, content string) {
	r.T.Helper()
	path := filepath.Join(r.Path, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		r.T.Fatalf("failed to create file: %v", err)
	}
}

// WriteBytes writes raw bytes to a file in the repository
func (r *TempGitRepo) WriteBytes(name string, data []byte) {
	r.T.Helper()
	path := filepath.Join(r.Path, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.T.Fatalf("failed to write file: %v", err)
	}
}

// RemoveFile deletes a file from the working directory
func (r *TempGitRepo) RemoveFile(name string) {
	r.T.Helper()
	if err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(name))); err != nil {
		r.T.Fatalf("failed to remove file: %v", err)
	}
}

// FileExists reports whether name exists in the working directory
func (r *TempGitRepo) FileExists(name string) bool {
	r.T.Helper()
	_, err := os.Stat(filepath.Join(r.Path, filepath.FromSlash(name)))
	return err == nil
}

// ReadFile returns the working directory content of name
func (r *TempGitRepo) ReadFile(name string) string {
	r.T.Helper()
	data, err := os.ReadFile(filepath.Join(r.Path, filepath.FromSlash(name)))
	if err != nil {
		r.T.Fatalf("failed to read file: %v", err)
	}
	return string(data)
}

// Stage adds the given paths to the index
func (r *TempGitRepo) Stage(paths ...string) {
	r.T.Helper()
	r.Git(append([]string{"add", "--"}, paths...)...)
}

// Commit stages and commits all changes
func (r *TempGitRepo) Commit(message string) {
	r.T.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-q", "-m", message)
}

// Head returns the commit hash HEAD points to
func (r *TempGitRepo) Head() string {
	r.T.Helper()
	return r.Git("rev-parse", "HEAD")
}

// GetFileContent retrieves file content from a revision
func (r *TempGitRepo) GetFileContent(rev, file string) string {
	r.T.Helper()
	return r.Git("show", rev+":"+file)
}
