package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/repowatch/internal/server"
	"github.com/pders01/repowatch/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tracker over HTTP",
	Long: `Run the tracker as a local HTTP service. Every operation is exposed as a
JSON endpoint under /api, and status changes are pushed to websocket
clients connected to /api/events.

The repository at --repo is tracked from the start when there is one;
otherwise clients pick it with POST /api/repository/detect.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadSettings()
	if err != nil {
		return err
	}

	svc := tracker.NewService(cfg, logger)
	defer svc.Close()

	root, err := svc.DetectRepository(ctx, repoPath)
	if err != nil {
		return err
	}
	if root == "" {
		logger.Warn("starting without a repository", "path", repoPath)
	}

	srv := server.New(svc, logger)
	defer srv.Close()

	return srv.Run(ctx, cfg.Server.Addr)
}
