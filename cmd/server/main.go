package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/outreach/internal/config"
	"github.com/iudanet/outreach/internal/logging"
	"github.com/iudanet/outreach/internal/server"
	"github.com/iudanet/outreach/internal/server/jwt"
	"github.com/iudanet/outreach/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	v := config.New()
	config.SetServerDefaults(v)

	cmd := &cobra.Command{
		Use:           "outreach-server",
		Short:         "Remote store for outreach clients",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyConfig, "", "Path to config file (yaml, toml or json)")
	flags.String(config.KeyAddr, v.GetString(config.KeyAddr), "Listen address")
	flags.String(config.KeyDB, v.GetString(config.KeyDB), "Path to SQLite database")
	flags.String(config.KeyJWTSecret, "", "Secret for signing access tokens (prefer OUTREACH_JWT_SECRET)")
	flags.Duration(config.KeyAccessTokenTTL, v.GetDuration(config.KeyAccessTokenTTL), "Access token lifetime")
	flags.Int(config.KeyAuthRateLimit, v.GetInt(config.KeyAuthRateLimit), "Auth requests allowed per client per window")
	flags.Duration(config.KeyAuthRateWindow, v.GetDuration(config.KeyAuthRateWindow), "Auth rate limit window")
	flags.Duration(config.KeyShutdownTimeout, v.GetDuration(config.KeyShutdownTimeout), "Graceful shutdown timeout")
	flags.String(config.KeyLogLevel, v.GetString(config.KeyLogLevel), "Log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, v.GetString(config.KeyLogFormat), "Log format: text or json")
	flags.String(config.KeyLogFile, "", "Write logs to a rotating file instead of stderr")
	_ = v.BindPFlags(flags)

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.LoadServer(v)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	tokens := jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL)

	srv := server.New(store, tokens, server.Options{
		Addr:            cfg.Addr,
		Version:         Version,
		AuthRateLimit:   cfg.AuthRateLimit,
		AuthRateWindow:  cfg.AuthRateWindow,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	logger.Info("starting server", "addr", cfg.Addr, "db", cfg.DBPath, "version", Version)
	return srv.Run(ctx)
}
