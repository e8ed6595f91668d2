package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/models"
)

var statusRefresh bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show staged, unstaged and untracked changes",
	Long: `Show the status of the working tree: the current branch, how far it is
ahead of and behind its upstream, staged changes, unstaged changes and
untracked files.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusRefresh, "refresh", false, "Recompute the status instead of using the cache")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	var status *models.RepositoryStatus
	if statusRefresh {
		status, err = svc.RefreshStatus(ctx)
	} else {
		status, err = svc.GetStatus(ctx)
	}
	if err != nil {
		return err
	}

	return render(cmd, status, func(w io.Writer) error {
		printStatus(w, status)
		return nil
	})
}

func printStatus(w io.Writer, status *models.RepositoryStatus) {
	if status.IsDetached {
		fmt.Fprintln(w, "HEAD detached")
	} else {
		fmt.Fprintf(w, "On branch %s\n", status.Branch())
	}
	if status.Ahead > 0 || status.Behind > 0 {
		fmt.Fprintf(w, "Ahead %d, behind %d\n", status.Ahead, status.Behind)
	}

	if status.IsClean() {
		fmt.Fprintln(w, "\nNothing to commit, working tree clean")
		return
	}

	if len(status.StagedChanges) > 0 {
		fmt.Fprintln(w, "\nStaged changes:")
		for _, c := range status.StagedChanges {
			fmt.Fprintf(w, "  %-12s %s\n", label(c.Status), c.Path)
		}
	}

	if len(status.Changes) > 0 {
		fmt.Fprintln(w, "\nChanges not staged:")
		for _, c := range status.Changes {
			fmt.Fprintf(w, "  %-12s %s\n", label(c.Status), c.Path)
		}
	}

	if len(status.Untracked) > 0 {
		fmt.Fprintln(w, "\nUntracked files:")
		for _, p := range status.Untracked {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

// label renders a status as "modified:", "renamed:" and so on
func label(s models.FileChangeStatus) string {
	return strings.ToLower(string(s.Kind)) + ":"
}

// describe adds the origin of renames and copies to a path
func describe(path string, s models.FileChangeStatus) string {
	switch s.Kind {
	case models.KindRenamed:
		return fmt.Sprintf("%s -> %s", s.OldPath, path)
	case models.KindCopied:
		return fmt.Sprintf("%s -> %s", s.Source, path)
	}
	return path
}
