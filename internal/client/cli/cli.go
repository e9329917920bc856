// Package cli implements the outreach command line: session management,
// per-entity CRUD over the offline repositories, one-shot sync and the daemon.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/outreach/internal/client/app"
	"github.com/iudanet/outreach/internal/client/iocli"
	"github.com/iudanet/outreach/internal/config"
	"github.com/iudanet/outreach/internal/logging"
)

// Exit codes
const (
	ExitOK    = 0
	ExitError = 1
	// ExitRetry: проход синхронизации завершился с Retry, часть изменений осталась в очереди
	ExitRetry = 2
)

// ExitCodeError carries a non-default exit code out of a command
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// BuildInfo is set via ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Cli holds state shared by the commands of one invocation
type Cli struct {
	io        iocli.IO
	v         *viper.Viper
	cfg       *config.Client
	logger    *slog.Logger
	logCloser io.Closer
	app       *app.App
	newApp    func(ctx context.Context, cfg *config.Client, logger *slog.Logger) (*app.App, error)
	info      BuildInfo
}

// New creates the CLI bound to the given terminal
func New(info BuildInfo, terminal iocli.IO) *Cli {
	v := config.New()
	config.SetClientDefaults(v)

	return &Cli{
		io:     terminal,
		v:      v,
		info:   info,
		newApp: app.New,
	}
}

// Execute runs the command line and returns the process exit code
func (c *Cli) Execute(ctx context.Context, args []string) int {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.io)
	root.SetErr(c.io)

	err := root.ExecuteContext(ctx)
	c.close()

	if err == nil {
		return ExitOK
	}

	c.io.Printf("Error: %v\n", err)
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitError
}

// RootCommand builds the command tree
func (c *Cli) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Offline-first client for the outreach volunteer records",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", c.info.Version, c.info.BuildDate, c.info.GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyConfig, "", "Path to config file (yaml, toml or json)")
	flags.String(config.KeyServer, c.v.GetString(config.KeyServer), "Remote store URL")
	flags.String(config.KeyDB, c.v.GetString(config.KeyDB), "Path to local database")
	flags.String(config.KeyVolunteerID, "", "Your volunteer record id, used as creator of new records")
	flags.Duration(config.KeyProbeInterval, c.v.GetDuration(config.KeyProbeInterval), "Connectivity probe interval")
	flags.Duration(config.KeyProbeTimeout, c.v.GetDuration(config.KeyProbeTimeout), "Connectivity probe timeout")
	flags.Duration(config.KeySyncInterval, c.v.GetDuration(config.KeySyncInterval), "Periodic sync interval while online (0 disables)")
	flags.Duration(config.KeyBackoffBase, c.v.GetDuration(config.KeyBackoffBase), "First retry delay after a failed sync")
	flags.Duration(config.KeyBackoffMax, c.v.GetDuration(config.KeyBackoffMax), "Maximum retry delay")
	flags.String(config.KeyLogLevel, c.v.GetString(config.KeyLogLevel), "Log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, c.v.GetString(config.KeyLogFormat), "Log format: text or json")
	flags.String(config.KeyLogFile, "", "Write logs to a rotating file instead of stderr")
	_ = c.v.BindPFlags(flags)

	root.AddGroup(
		&cobra.Group{ID: "session", Title: "Session:"},
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
	)

	root.AddCommand(
		c.registerCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.syncCommand(),
		c.daemonCommand(),
	)
	root.AddCommand(c.entityCommands()...)

	return root
}

func (c *Cli) setup() error {
	if c.cfg != nil {
		return nil
	}

	cfg, err := config.LoadClient(c.v)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.logCloser = closer
	return nil
}

// open lazily builds the component graph
func (c *Cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if err := c.setup(); err != nil {
		return nil, err
	}

	a, err := c.newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// openOnline opens the app and runs the first readiness probe, so writes of a
// one-shot command go straight to the remote store when it answers
func (c *Cli) openOnline(ctx context.Context) (*app.App, error) {
	a, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	state := a.Monitor.Check(ctx)
	c.logger.Debug("Remote store probed", "state", state.String())
	return a, nil
}

func (c *Cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			c.logger.Error("failed to close database", "error", err)
		}
		c.app = nil
	}
	if c.logCloser != nil {
		_ = c.logCloser.Close()
		c.logCloser = nil
	}
}
