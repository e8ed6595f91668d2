package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/tracker"
)

var (
	stageAll   bool
	unstageAll bool
)

var stageCmd = &cobra.Command{
	Use:   "stage [<path>...]",
	Short: "Add paths to the index",
	Long: `Add paths to the index. Deleted paths are staged as removals.

With --all every change in the working tree is staged, including
untracked files, and the number of staged entries is printed.`,
	RunE: runStage,
}

var unstageCmd = &cobra.Command{
	Use:   "unstage [<path>...]",
	Short: "Remove paths from the index",
	Long: `Reset paths in the index to their HEAD version, keeping the working
tree untouched. On a repository without commits the paths are simply
removed from the index.`,
	RunE: runUnstage,
}

func init() {
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(unstageCmd)

	stageCmd.Flags().BoolVarP(&stageAll, "all", "A", false, "Stage every change")
	unstageCmd.Flags().BoolVarP(&unstageAll, "all", "A", false, "Unstage every staged change")
}

func runStage(cmd *cobra.Command, args []string) error {
	return applyPaths(cmd, args, stageAll, "Staged",
		func(ctx context.Context, svc *tracker.Service, path string) error {
			return svc.StageFile(ctx, path)
		},
		func(ctx context.Context, svc *tracker.Service) (uint32, error) {
			return svc.StageAll(ctx)
		})
}

func runUnstage(cmd *cobra.Command, args []string) error {
	return applyPaths(cmd, args, unstageAll, "Unstaged",
		func(ctx context.Context, svc *tracker.Service, path string) error {
			return svc.UnstageFile(ctx, path)
		},
		func(ctx context.Context, svc *tracker.Service) (uint32, error) {
			return svc.UnstageAll(ctx)
		})
}

// applyPaths runs one per-path operation for every argument, or the bulk
// variant when all is set
func applyPaths(
	cmd *cobra.Command,
	args []string,
	all bool,
	verb string,
	one func(context.Context, *tracker.Service, string) error,
	bulk func(context.Context, *tracker.Service) (uint32, error),
) error {
	if all && len(args) > 0 {
		return fmt.Errorf("--all does not take paths")
	}
	if !all && len(args) == 0 {
		return fmt.Errorf("no paths given (use --all for every change)")
	}

	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if all {
		count, err := bulk(ctx, svc)
		if err != nil {
			return err
		}
		return render(cmd, map[string]uint32{"count": count}, func(w io.Writer) error {
			fmt.Fprintf(w, "%s %d file(s)\n", verb, count)
			return nil
		})
	}

	for _, path := range args {
		if err := one(ctx, svc, path); err != nil {
			return err
		}
	}
	return render(cmd, map[string][]string{"paths": args}, func(w io.Writer) error {
		for _, path := range args {
			fmt.Fprintf(w, "%s %s\n", verb, path)
		}
		return nil
	})
}
