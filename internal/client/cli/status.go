package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/outreach/internal/client/auth"
	"github.com/iudanet/outreach/internal/client/connectivity"
	"github.com/iudanet/outreach/internal/models"
)

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show session, reachability and pending changes",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.openOnline(ctx)
			if err != nil {
				return err
			}

			c.io.Printf("Server:  %s\n", c.cfg.Server)

			session, err := a.Auth.Session(ctx)
			switch {
			case err == nil:
				c.io.Printf("Session: %s (expires %s)\n", session.Username,
					time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			case errors.Is(err, auth.ErrNotLoggedIn):
				c.io.Printf("Session: %v\n", err)
			default:
				return err
			}

			state := a.Monitor.CurrentState()
			c.io.Printf("Remote:  %s\n", state)
			if state != connectivity.Reachable {
				c.io.Println("         changes are saved locally and will sync when the server is reachable")
			}

			last, err := a.Store.GetLastSyncTimestamp(ctx)
			if err != nil {
				return fmt.Errorf("failed to read last sync time: %w", err)
			}
			if last == 0 {
				c.io.Println("Synced:  never")
			} else {
				c.io.Printf("Synced:  %s\n", time.Unix(last, 0).Format(time.RFC3339))
			}

			c.io.Println()
			tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tPENDING")
			total := 0
			for _, t := range models.EntityTypes {
				e, ok := a.Registry.Get(t)
				if !ok {
					continue
				}
				n, err := e.Pending(ctx)
				if err != nil {
					return err
				}
				total += n
				fmt.Fprintf(tw, "%s\t%d\n", t, n)
			}
			fmt.Fprintf(tw, "total\t%d\n", total)
			return tw.Flush()
		},
	}
}
