package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/tracker"
)

var detectCmd = &cobra.Command{
	Use:   "detect [dir]",
	Short: "Print the root of the repository containing a path",
	Long: `Discover the repository containing dir (default --repo) by walking
upwards and print its working tree root. Outside a repository nothing is
found and the command still succeeds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
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

	root, err := svc.DetectRepository(commandContext(cmd), dir)
	if err != nil {
		return err
	}

	var result struct {
		Root *string `json:"root" yaml:"root"`
	}
	if root != "" {
		result.Root = &root
	}

	return render(cmd, result, func(w io.Writer) error {
		if root == "" {
			fmt.Fprintf(w, "No git repository found at %s\n", dir)
			return nil
		}
		fmt.Fprintln(w, root)
		return nil
	})
}
