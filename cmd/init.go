package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/tracker"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a git repository",
	Long: `Create a git repository with "main" as its initial branch.

Without an argument the repository is created at --repo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := repoPath
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, logger, err := loadSettings()
	if err != nil {
		return err
	}
	cfg.Watch.Enabled = false

	svc := tracker.NewService(cfg, logger)
	defer svc.Close()

	root, err := svc.InitRepository(commandContext(cmd), dir)
	if err != nil {
		return err
	}

	return render(cmd, map[string]string{"root": root}, func(w io.Writer) error {
		fmt.Fprintf(w, "Initialized git repository in %s\n", root)
		return nil
	})
}
