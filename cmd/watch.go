package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/repowatch/internal/models"
	"github.com/pders01/repowatch/internal/tracker"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a status summary whenever the repository changes",
	Long: `Watch the working tree and print a one line status summary after every
change. Bursts of filesystem events are collapsed by the debounce window
(watch.debounce). Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	events := make(chan tracker.Event, 1)
	id := svc.Subscribe(func(ev tracker.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer svc.Unsubscribe(id)

	return watchLoop(ctx, cmd, svc, events)
}

func watchLoop(ctx context.Context, cmd *cobra.Command, svc *tracker.Service, events <-chan tracker.Event) error {
	if err := printSummary(ctx, cmd, svc, time.Now()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := printSummary(ctx, cmd, svc, ev.At); err != nil {
				return err
			}
		}
	}
}

type statusSummary struct {
	At        time.Time `json:"at" yaml:"at"`
	Branch    string    `json:"branch" yaml:"branch"`
	Detached  bool      `json:"detached" yaml:"detached"`
	Staged    int       `json:"staged" yaml:"staged"`
	Changed   int       `json:"changed" yaml:"changed"`
	Untracked int       `json:"untracked" yaml:"untracked"`
}

func summarize(status *models.RepositoryStatus, at time.Time) statusSummary {
	return statusSummary{
		At:        at,
		Branch:    status.Branch(),
		Detached:  status.IsDetached,
		Staged:    len(status.StagedChanges),
		Changed:   len(status.Changes),
		Untracked: len(status.Untracked),
	}
}

func printSummary(ctx context.Context, cmd *cobra.Command, svc *tracker.Service, at time.Time) error {
	status, err := svc.GetStatus(ctx)
	if err != nil {
		return err
	}

	s := summarize(status, at)
	return render(cmd, s, func(w io.Writer) error {
		branch := s.Branch
		if s.Detached {
			branch = "(detached)"
		}
		fmt.Fprintf(w, "%s %s: %d staged, %d changed, %d untracked\n",
			s.At.Format("15:04:05"), branch, s.Staged, s.Changed, s.Untracked)
		return nil
	})
}
