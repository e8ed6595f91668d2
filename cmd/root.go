package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/repowatch/internal/config"
	"github.com/pders01/repowatch/internal/git"
	"github.com/pders01/repowatch/internal/logging"
	"github.com/pders01/repowatch/internal/tracker"
)

var (
	cfgFile      string
	repoPath     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "repowatch",
	Short: "Track the working tree state of a git repository",
	Long: `repowatch reports and changes the state of a git working tree:
  - staged, unstaged and untracked paths
  - staging, unstaging, discarding and committing
  - commit history and per-file diffs
  - live change notifications from a filesystem watcher

It runs as a one-shot CLI or as a local HTTP service (repowatch serve).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", git.Message(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/repowatch/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "C", ".", "path inside the repository to operate on")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, json, yaml or toon")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "repowatch")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("repowatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Warning: failed to read config file:", err)
		}
	}
}

// loadSettings decodes the effective config and builds the logger
func loadSettings() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	git.Binary = cfg.Git.Binary
	return cfg, logger, nil
}

// openService detects the repository at --repo and returns a Service
// tracking it. One-shot commands run without the filesystem watcher.
func openService(ctx context.Context, watch bool) (*tracker.Service, error) {
	cfg, logger, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if !watch {
		cfg.Watch.Enabled = false
	}

	svc := tracker.NewService(cfg, logger)
	root, err := svc.DetectRepository(ctx, repoPath)
	if err != nil {
		svc.Close()
		return nil, err
	}
	if root == "" {
		svc.Close()
		return nil, fmt.Errorf("not a git repository: %s", repoPath)
	}
	return svc, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
