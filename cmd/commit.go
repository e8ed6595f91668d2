package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/models"
)

var commitMessage string

var commitCmd = &cobra.Command{
	Use:   "commit -m <message>",
	Short: "Record the staged changes",
	Long: `Create a commit from the index on the current branch. The commit fails
when nothing is staged, and the message must not be blank.

Author and committer come from the git configuration.`,
	Args: cobra.NoArgs,
	RunE: runCommit,
}

func init() {
	rootCmd.AddCommand(commitCmd)

	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message")
}

func runCommit(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := openService(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	hash, err := svc.Commit(ctx, commitMessage)
	if err != nil {
		return err
	}

	return render(cmd, map[string]string{"hash": hash}, func(w io.Writer) error {
		fmt.Fprintf(w, "Committed %s\n", models.ShortHash(hash))
		return nil
	})
}
