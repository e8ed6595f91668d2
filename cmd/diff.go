package cmd

import (
	"fmt"
	"io"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/models"
)

var diffStaged bool

var diffCmd = &cobra.Command{
	Use:   "diff <path>...",
	Short: "Show the changes of one or more paths",
	Long: `Show what changed in a path as a unified diff. By default the HEAD
version is compared with the working tree; with --staged HEAD is compared
with the index.

Several paths are diffed in parallel.

Example:
  repowatch diff src/main.go
  repowatch diff --staged README.md docs/intro.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffStaged, "staged", false, "Compare the index with HEAD")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if len(args) == 1 {
		var diff *models.Diff
		if diffStaged {
			diff, err = svc.GetStagedDiff(ctx, args[0])
		} else {
			diff, err = svc.GetFileDiff(ctx, args[0])
		}
		if err != nil {
			return err
		}
		return render(cmd, diff, func(w io.Writer) error {
			printDiff(w, diff)
			return nil
		})
	}

	results, err := svc.GetFileDiffs(ctx, args, diffStaged)
	if err != nil {
		return err
	}
	return render(cmd, results, func(w io.Writer) error {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(w, "%s: %s\n", r.Path, r.Error)
				continue
			}
			printDiff(w, r.Diff)
		}
		return nil
	})
}

func printDiff(w io.Writer, d *models.Diff) {
	oldLabel, newLabel := "a/"+d.Path, "b/"+d.Path
	if d.Binary {
		fmt.Fprintf(w, "--- %s\n+++ %s\nBinary files differ\n", oldLabel, newLabel)
		return
	}
	if d.OldContent == d.NewContent {
		return
	}
	io.WriteString(w, udiff.Unified(oldLabel, newLabel, d.OldContent, d.NewContent))
}
