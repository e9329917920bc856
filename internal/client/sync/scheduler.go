package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Runner runs one sync pass
type Runner interface {
	Run(ctx context.Context) Report
}

// Connectivity is the view of connectivity.Monitor the scheduler needs
type Connectivity interface {
	Reachable() bool
	Subscribe(fn func()) func()
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Interval    time.Duration // периодическая синхронизация, пока сервер доступен; 0 отключает
	BackoffBase time.Duration // первая пауза после Retry
	BackoffMax  time.Duration // потолок паузы
	JitterPct   uint64
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:    5 * time.Minute,
		BackoffBase: 2 * time.Second,
		BackoffMax:  5 * time.Minute,
		JitterPct:   20,
	}
}

// Scheduler decides when the worker runs: on transitions into Reachable,
// on explicit Trigger, periodically while reachable, and after a Retry
// outcome with exponential backoff.
type Scheduler struct {
	runner  Runner
	conn    Connectivity
	logger  *slog.Logger
	trigger chan struct{}
	last    *Report
	cfg     SchedulerConfig
	mu      stdsync.Mutex
}

// NewScheduler creates a scheduler. conn may be nil, then every trigger runs the worker.
func NewScheduler(runner Runner, conn Connectivity, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	return &Scheduler{
		runner:  runner,
		conn:    conn,
		logger:  logger,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a sync pass. It never blocks; requests made while a pass
// is pending coalesce.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastReport returns the report of the most recent pass
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// RunOnce runs a single pass regardless of connectivity
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	report := s.runner.Run(ctx)
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report
}

func (s *Scheduler) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.BackoffBase)
	if s.cfg.JitterPct > 0 {
		b = retry.WithJitterPercent(s.cfg.JitterPct, b)
	}
	return retry.WithCappedDuration(s.cfg.BackoffMax, b)
}

func (s *Scheduler) reachable() bool {
	return s.conn == nil || s.conn.Reachable()
}

// Run schedules passes until ctx is cancelled. A pass in progress when ctx
// is cancelled completes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	if s.conn != nil {
		unsubscribe := s.conn.Subscribe(s.Trigger)
		defer unsubscribe()
	}

	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	backoff := s.newBackoff()
	var (
		retryTimer *time.Timer
		retryC     <-chan time.Time
	)
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
		retryTimer, retryC = nil, nil
	}
	defer stopRetry()

	s.logger.Info("Sync scheduler started", "interval", s.cfg.Interval)

	for {
		var reason string
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return
		case <-s.trigger:
			reason = "trigger"
		case <-tick:
			reason = "periodic"
		case <-retryC:
			retryTimer, retryC = nil, nil
			reason = "retry"
		}

		if !s.reachable() {
			// переход в Reachable вызовет Trigger
			s.logger.Debug("Skipping sync, remote unreachable", "reason", reason)
			continue
		}

		s.logger.Debug("Starting sync pass", "reason", reason)
		report := s.RunOnce(ctx)

		if report.Outcome == Success {
			backoff = s.newBackoff()
			stopRetry()
			continue
		}

		delay, _ := backoff.Next()
		stopRetry()
		retryTimer = time.NewTimer(delay)
		retryC = retryTimer.C
		s.logger.Info("Sync needs retry", "delay", delay, "remaining", report.Remaining())
	}
}
