package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files <path>...",
	Short: "Show the status of individual paths",
	Long: `Show one status per requested path. Staged information wins over the
working tree, and paths without any change report as Modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	statuses, err := svc.GetFileStatuses(ctx, args)
	if err != nil {
		return err
	}

	return render(cmd, statuses, func(w io.Writer) error {
		for _, ps := range statuses {
			fmt.Fprintf(w, "%-12s %s\n", label(ps.Status), describe(ps.Path, ps.Status))
		}
		return nil
	})
}
