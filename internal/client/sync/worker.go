package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/outreach/internal/client/remote"
	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

//go:generate moq -out syncable_mock.go . Syncable

// Syncable is implemented by every repository whose queued mutations the
// worker replays. ApplyRemote performs the remote call for one mutation and
// returns its error unchanged so the worker can classify it.
type Syncable interface {
	EntityType() models.EntityType
	ApplyRemote(ctx context.Context, m *models.QueuedMutation) error
}

// Worker drains the mutation queue: one concurrent task per Syncable,
// strictly sequential within a type.
type Worker struct {
	queue   storage.MutationQueue
	meta    storage.MetadataStorage
	locks   *Locks
	logger  *slog.Logger
	now     func() time.Time
	targets []Syncable
}

// NewWorker creates a worker. meta may be nil.
func NewWorker(queue storage.MutationQueue, meta storage.MetadataStorage, locks *Locks, targets []Syncable, logger *slog.Logger) *Worker {
	return &Worker{
		queue:   queue,
		meta:    meta,
		locks:   locks,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		targets: targets,
	}
}

// Run drains every registered type once and joins all tasks.
// Mutations enqueued after Run started are left for the next run.
// Cancelling ctx does not interrupt the drains: each task stops at its
// natural halting point.
func (w *Worker) Run(ctx context.Context) Report {
	ctx = context.WithoutCancel(ctx)
	started := w.now()
	report := Report{StartedAt: started, Types: make([]TypeReport, len(w.targets))}

	purged, err := w.queue.PurgeCorrupt(ctx)
	if err != nil {
		w.logger.Warn("Failed to purge corrupt queue entries", "error", err)
	}
	if purged > 0 {
		w.logger.Warn("Dropped undecodable queue entries", "count", purged)
	}
	report.Purged = purged

	var g errgroup.Group
	for i, target := range w.targets {
		g.Go(func() error {
			report.Types[i] = w.drain(ctx, target, started)
			return nil
		})
	}
	// задачи не возвращают ошибок: результат каждой в отчёте
	_ = g.Wait()

	report.Outcome = Success
	for _, tr := range report.Types {
		if tr.Halted {
			report.Outcome = Retry
			break
		}
	}
	report.Duration = w.now().Sub(started)

	if report.Outcome == Success && w.meta != nil {
		if err := w.meta.SaveLastSyncTimestamp(ctx, started.Unix()); err != nil {
			w.logger.Warn("Failed to save last sync timestamp", "error", err)
		}
	}

	w.logger.Info("Sync run finished",
		"outcome", report.Outcome.String(),
		"applied", report.Applied(),
		"dropped", report.Dropped(),
		"remaining", report.Remaining(),
		"duration", report.Duration,
	)

	return report
}

func (w *Worker) drain(ctx context.Context, target Syncable, asOf time.Time) TypeReport {
	t := target.EntityType()
	tr := TypeReport{EntityType: t}

	unlock := w.locks.Lock(t)
	defer unlock()

	pending, err := w.queue.PeekPending(ctx, t, asOf)
	if err != nil {
		w.logger.Error("Failed to read queue", "entity_type", t, "error", err)
		tr.Halted = true
		tr.Err = err
		return tr
	}

	for i := range pending {
		m := &pending[i]
		err := target.ApplyRemote(ctx, m)

		if remote.IsTransient(err) {
			w.logger.Info("Remote unavailable, halting drain",
				"entity_type", t,
				"seq", m.Seq,
				"error", err,
			)
			tr.Halted = true
			tr.Err = err
			tr.Remaining = len(pending) - i
			return tr
		}

		switch {
		case err == nil:
			tr.Applied++
		case remote.IsRejected(err):
			w.logger.Warn("Dropping mutation rejected by remote store",
				"entity_type", t,
				"operation", m.Operation,
				"record_id", m.RecordID,
				"seq", m.Seq,
				"reason", "rejected",
				"error", err,
			)
			tr.Dropped++
		case errors.Is(err, storage.ErrCorruptPayload):
			w.logger.Warn("Dropping corrupt queued mutation",
				"entity_type", t,
				"operation", m.Operation,
				"record_id", m.RecordID,
				"seq", m.Seq,
				"reason", "corrupt",
				"error", err,
			)
			tr.Dropped++
		default:
			// неизвестная ошибка: запись остаётся в очереди
			w.logger.Error("Unclassified sync failure, halting drain",
				"entity_type", t,
				"operation", m.Operation,
				"record_id", m.RecordID,
				"seq", m.Seq,
				"error", err,
			)
			tr.Halted = true
			tr.Err = err
			tr.Remaining = len(pending) - i
			return tr
		}

		if err := w.queue.Remove(ctx, m.Seq); err != nil {
			w.logger.Error("Failed to remove queue entry", "entity_type", t, "seq", m.Seq, "error", err)
			tr.Halted = true
			tr.Err = err
			tr.Remaining = len(pending) - i
			return tr
		}
	}

	if len(pending) > 0 {
		w.logger.Debug("Drained entity type", "entity_type", t, "applied", tr.Applied, "dropped", tr.Dropped)
	}
	return tr
}
