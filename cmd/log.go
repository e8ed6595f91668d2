package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	logOffset uint32
	logLimit  uint32
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history, oldest first",
	Long: `Show a window of the history reachable from HEAD in chronological order.
The window is counted back from the newest commit: --offset 0 --limit 10
shows the ten most recent commits.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().Uint32Var(&logOffset, "offset", 0, "Number of newest commits to skip")
	logCmd.Flags().Uint32VarP(&logLimit, "limit", "n", 50, "Maximum number of commits")
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	commits, err := svc.GetHistory(ctx, logOffset, logLimit)
	if err != nil {
		return err
	}

	return render(cmd, commits, func(w io.Writer) error {
		if len(commits) == 0 {
			fmt.Fprintln(w, "No commits")
			return nil
		}
		for _, c := range commits {
			when := time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04")
			subject, _, _ := strings.Cut(c.Message, "\n")
			fmt.Fprintf(w, "%s %s %-20s %s\n", c.ShortHash, when, c.AuthorName, subject)
		}
		return nil
	})
}
