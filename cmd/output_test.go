package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/repowatch/internal/models"
	"github.com/pders01/repowatch/internal/testutil"
	"github.com/pders01/repowatch/internal/tracker"
)

func TestRenderFormats(t *testing.T) {
	v := models.PathStatus{Path: "new.txt", Status: models.Renamed("old.txt")}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "plain\n")
		return err
	}

	tests := []struct {
		format string
		want   string
	}{
		{"text", "plain\n"},
		{"json", `"Renamed": {`},
		{"yaml", "status: renamed from old.txt"},
		{"toon", "new.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := run(t, ".", tt.format, func(c *cobra.Command, _ []string) error {
				return render(c, v, text)
			})
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := run(t, ".", "xml", func(c *cobra.Command, _ []string) error {
		return render(c, struct{}{}, func(io.Writer) error { return nil })
	})
	assert.ErrorContains(t, err, "unknown output format")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLoopPrintsOnEvents(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	repoPath = repo.Path
	t.Cleanup(func() { repoPath = "." })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := openService(ctx, false)
	require.NoError(t, err)
	defer svc.Close()

	out := &lockedBuffer{}
	c := &cobra.Command{}
	c.SetOut(out)

	events := make(chan tracker.Event, 1)
	done := make(chan error, 1)
	go func() { done <- watchLoop(ctx, c, svc, events) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "main: 0 staged, 0 changed, 0 untracked")
	}, 5*time.Second, 10*time.Millisecond)

	repo.CreateFile("new.txt", "hello\n")
	svc.State().InvalidateStatusCache()
	events <- tracker.Event{Type: tracker.EventStatusChanged, Root: repo.Path, At: time.Now()}

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "main: 0 staged, 0 changed, 1 untracked")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}
