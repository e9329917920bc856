package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/outreach/internal/client/connectivity"
	"github.com/iudanet/outreach/internal/client/repository"
	clientsync "github.com/iudanet/outreach/internal/client/sync"
	"github.com/iudanet/outreach/internal/models"
)

func (c *Cli) syncCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "sync",
		Short:   "Send queued changes now (exit code 2 if some remain queued)",
		GroupID: "sync",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.openOnline(ctx)
			if err != nil {
				return err
			}

			if a.Monitor.CurrentState() != connectivity.Reachable {
				return &ExitCodeError{
					Code: ExitRetry,
					Err:  errors.New("remote store is not reachable, changes stay queued"),
				}
			}

			report := a.Scheduler.RunOnce(ctx)
			c.io.Println(report.String())
			for _, t := range report.Types {
				if t.Applied+t.Dropped+t.Remaining > 0 {
					c.io.Printf("  %-10s applied=%d dropped=%d remaining=%d\n", t.EntityType, t.Applied, t.Dropped, t.Remaining)
				}
			}

			if report.Outcome == clientsync.Retry {
				return &ExitCodeError{
					Code: ExitRetry,
					Err:  fmt.Errorf("%d change(s) remain queued", report.Remaining()),
				}
			}

			if refresh {
				for _, t := range models.EntityTypes {
					e, _ := a.Registry.Get(t)
					n, err := e.Refresh(ctx)
					if err != nil {
						if errors.Is(err, repository.ErrPendingChanges) {
							c.io.Printf("  %-10s refresh skipped: pending changes\n", t)
							continue
						}
						return err
					}
					c.io.Printf("  %-10s refreshed %d record(s)\n", t, n)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Pull remote collections into the local store after sending")
	return cmd
}

func (c *Cli) daemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Short:   "Watch connectivity and sync in the background until interrupted",
		GroupID: "sync",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.io.Printf("Syncing with %s every %s (Ctrl+C to stop)\n", c.cfg.Server, c.cfg.SyncInterval)
			return a.RunDaemon(cmd.Context())
		},
	}
}
