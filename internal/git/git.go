package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Binary is the git executable used for every command
var Binary = "git"

// command is a single git invocation rooted at dir
type command struct {
	dir      string
	args     []string
	stdin    io.Reader
	readOnly bool
}

// CommandError carries the stderr of a failed git invocation
type CommandError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func newCommand(dir string, args ...string) *command {
	return &command{dir: dir, args: args}
}

// run executes the command and returns stdout
func (c *command) run(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, Binary, c.args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(),
		"LC_ALL=C",
		"GIT_LITERAL_PATHSPECS=1",
		"GIT_TERMINAL_PROMPT=0",
	)
	if c.readOnly {
		// status must not rewrite the index, otherwise every refresh would
		// wake up the watcher
		cmd.Env = append(cmd.Env, "GIT_OPTIONAL_LOCKS=0")
	}
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Args:     c.args,
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: -1,
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return nil, cerr
	}

	return stdout.Bytes(), nil
}

// output runs the command and returns trimmed stdout
func (c *command) output(ctx context.Context) (string, error) {
	out, err := c.run(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// isNotRepository reports whether git refused to run because dir is not
// inside a work tree
func isNotRepository(err error) bool {
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		return false
	}
	return strings.Contains(cerr.Stderr, "not a git repository") ||
		strings.Contains(cerr.Stderr, "must be run in a work tree")
}
