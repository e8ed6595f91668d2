package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:   "discard <path>...",
	Short: "Throw away working tree changes",
	Long: `Restore paths to their HEAD version. Untracked files and directories are
deleted from disk, staged additions are removed from the index.

This cannot be undone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiscard,
}

func init() {
	rootCmd.AddCommand(discardCmd)
}

func runDiscard(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DiscardChanges(ctx, args); err != nil {
		return err
	}

	return render(cmd, map[string][]string{"paths": args}, func(w io.Writer) error {
		for _, path := range args {
			fmt.Fprintf(w, "Discarded %s\n", path)
		}
		return nil
	})
}
