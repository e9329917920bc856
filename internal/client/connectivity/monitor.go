// Package connectivity tracks whether the remote store is reachable and
// notifies subscribers on every transition into the reachable state.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State состояние доступности удалённого хранилища
type State int

const (
	// Unknown до первого наблюдения
	Unknown State = iota
	Reachable
	Unreachable
)

func (s State) String() string {
	switch s {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	}
	return "unknown"
}

//go:generate moq -out prober_mock.go . Prober

// Prober checks the remote store once
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor is an edge-triggered reachability tracker.
// It is safe for concurrent use.
type Monitor struct {
	logger   *slog.Logger
	prober   Prober
	subs     map[int]func()
	state    State
	interval time.Duration
	nextID   int
	mu       sync.Mutex
}

// NewMonitor creates a monitor. prober may be nil when the state is driven
// only through Observe.
func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		logger:   logger,
		prober:   prober,
		interval: interval,
		subs:     make(map[int]func()),
	}
}

// CurrentState returns the last observed state
func (m *Monitor) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reachable is a shorthand for CurrentState() == Reachable
func (m *Monitor) Reachable() bool {
	return m.CurrentState() == Reachable
}

// Subscribe registers fn to be called on each transition into Reachable.
// fn must not block. The returned func removes the subscription.
func (m *Monitor) Subscribe(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Observe records a reachability signal. Repeated signals of the same state
// are ignored; a first observation of Reachable counts as a transition.
func (m *Monitor) Observe(reachable bool) {
	next := Unreachable
	if reachable {
		next = Reachable
	}

	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next

	var notify []func()
	if next == Reachable {
		notify = make([]func(), 0, len(m.subs))
		for _, fn := range m.subs {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)

	// вызываем подписчиков вне блокировки
	for _, fn := range notify {
		fn()
	}
}

// Check probes once and records the result
func (m *Monitor) Check(ctx context.Context) State {
	if m.prober == nil {
		return m.CurrentState()
	}

	err := m.prober.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		// отмена не является признаком недоступности
		return m.CurrentState()
	}
	if err != nil {
		m.logger.Debug("probe failed", slog.String("error", err.Error()))
	}
	m.Observe(err == nil)
	return m.CurrentState()
}

// Run probes immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil || m.interval <= 0 {
		<-ctx.Done()
		return
	}

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
