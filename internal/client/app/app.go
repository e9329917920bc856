// Package app wires the client side of the sync engine together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/outreach/internal/client/auth"
	"github.com/iudanet/outreach/internal/client/connectivity"
	"github.com/iudanet/outreach/internal/client/remote"
	"github.com/iudanet/outreach/internal/client/repository"
	"github.com/iudanet/outreach/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/outreach/internal/client/sync"
	"github.com/iudanet/outreach/internal/config"
)

// App holds every long-lived client component. It is built once per process.
type App struct {
	Store     *boltdb.Storage
	Remote    *remote.Client
	Auth      *auth.Service
	Monitor   *connectivity.Monitor
	Locks     *clientsync.Locks
	Registry  *repository.Registry
	Worker    *clientsync.Worker
	Scheduler *clientsync.Scheduler
	logger    *slog.Logger
	closeOnce stdsync.Once
}

// schedulerTrigger разрывает цикл зависимостей: репозиториям нужен
// Trigger, а планировщик строится из воркера, которому нужны репозитории.
type schedulerTrigger struct {
	scheduler *clientsync.Scheduler
}

func (t *schedulerTrigger) Trigger() {
	if t.scheduler != nil {
		t.scheduler.Trigger()
	}
}

// New opens the local database and builds the component graph:
// store -> remote client -> monitor -> repositories -> worker -> scheduler.
func New(ctx context.Context, cfg *config.Client, logger *slog.Logger) (*App, error) {
	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	a := &App{Store: store, logger: logger}

	a.Remote = remote.NewClient(cfg.Server, remote.WithTokenSource(func(ctx context.Context) (string, error) {
		return a.Auth.Token(ctx)
	}))
	a.Auth = auth.NewService(a.Remote, store, logger)

	a.Monitor = connectivity.NewMonitor(
		connectivity.NewHTTPProber(a.Remote, cfg.ProbeTimeout),
		cfg.ProbeInterval,
		logger,
	)
	a.Locks = clientsync.NewLocks()

	trigger := &schedulerTrigger{}
	a.Registry = repository.NewRegistry(repository.Deps{
		Store:  store,
		Queue:  store,
		Remote: a.Remote,
		Conn:   a.Monitor,
		Locks:  a.Locks,
		Sync:   trigger,
		Logger: logger,
	})

	a.Worker = clientsync.NewWorker(store, store, a.Locks, a.Registry.Syncables(), logger)
	a.Scheduler = clientsync.NewScheduler(a.Worker, a.Monitor, clientsync.SchedulerConfig{
		Interval:    cfg.SyncInterval,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		JitterPct:   clientsync.DefaultSchedulerConfig().JitterPct,
	}, logger)
	trigger.scheduler = a.Scheduler

	return a, nil
}

// RunDaemon runs the connectivity monitor and the scheduler until ctx is done
func (a *App) RunDaemon(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Monitor.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.Scheduler.Run(ctx)
		return nil
	})

	a.logger.Info("Daemon started")
	err := g.Wait()
	a.logger.Info("Daemon stopped")
	return err
}

// Close releases the local database
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.Store.Close()
	})
	return err
}
