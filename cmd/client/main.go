package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/outreach/internal/client/cli"
	"github.com/iudanet/outreach/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	c := cli.New(cli.BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}, iocli.NewStdio())

	code := c.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
