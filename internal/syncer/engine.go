// Package syncer pushes locally recorded sales to the remote repository.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mesapos/backend/internal/connectivity"
	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/ledger"
	"mesapos/backend/internal/store"
)

const (
	MaxSyncAttempts      = 3
	DefaultRemoteTimeout = 10 * time.Second
)

type Options struct {
	MaxAttempts   int
	RemoteTimeout time.Duration
	Logger        logrus.FieldLogger
	Now           func() time.Time
}

// Engine drains the pending queue. Passes are serialized; a second caller
// waits for the running pass to finish.
type Engine struct {
	mu            sync.Mutex
	ledger        *ledger.Ledger
	remote        store.Remote
	probe         connectivity.Probe
	log           logrus.FieldLogger
	maxAttempts   int
	remoteTimeout time.Duration
	now           func() time.Time
}

func NewEngine(l *ledger.Ledger, remote store.Remote, probe connectivity.Probe, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxSyncAttempts
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		ledger:        l,
		remote:        remote,
		probe:         probe,
		log:           opts.Logger.WithField("component", "syncer"),
		maxAttempts:   opts.MaxAttempts,
		remoteTimeout: opts.RemoteTimeout,
		now:           opts.Now,
	}
}

func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// Push sends one record to the remote. A duplicate-ID rejection means an
// earlier push already landed, so it counts as success.
func (e *Engine) Push(ctx context.Context, record domain.SaleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	err := e.remote.Insert(ctx, record)
	if err == nil || errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// ProcessPendingSyncs runs one pass over the pending queue. Offline it does
// nothing. Each queued record gets at most maxAttempts pushes across passes;
// after the last failed push it leaves the queue and stays local with
// synced=false. Queue entries with no local record are dropped without
// spending an attempt. All changes land in the ledger in one write per key.
func (e *Engine) ProcessPendingSyncs(ctx context.Context) (domain.SyncReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := domain.SyncReport{RanAt: e.now().UTC()}

	if !e.probe.IsOnline(ctx) {
		pending, err := e.ledger.Pending(ctx)
		if err != nil {
			return report, err
		}
		report.Remaining = len(pending)
		e.log.WithField("pending", report.Remaining).Debug("offline, sync skipped")
		return report, nil
	}
	report.Online = true

	state, err := e.ledger.Snapshot(ctx)
	if err != nil {
		return report, err
	}
	if len(state.Pending) == 0 {
		return report, nil
	}

	byID := make(map[string]domain.SaleRecord, len(state.Records))
	for _, record := range state.Records {
		byID[record.ID] = record
	}

	out := ledger.Outcome{Attempts: map[string]int{}}
	for _, id := range state.Pending {
		if ctx.Err() != nil {
			break
		}

		record, ok := byID[id]
		if !ok {
			out.Dropped = append(out.Dropped, id)
			report.Orphans++
			continue
		}
		if record.Synced {
			out.Dropped = append(out.Dropped, id)
			continue
		}

		attempt := state.Attempts[id] + 1
		if attempt > e.maxAttempts {
			out.Dropped = append(out.Dropped, id)
			report.Abandoned++
			e.log.WithField("sale_id", id).Warn("sync attempts exhausted, keeping sale local only")
			continue
		}

		report.Attempted++
		if err := e.Push(ctx, record); err != nil {
			report.Failed++
			entry := e.log.WithError(err).WithFields(logrus.Fields{"sale_id": id, "attempt": attempt})
			if attempt >= e.maxAttempts {
				out.Dropped = append(out.Dropped, id)
				report.Abandoned++
				entry.Warn("sync failed on last attempt, keeping sale local only")
				continue
			}
			out.Attempts[id] = attempt
			entry.Info("sync failed, will retry")
			continue
		}

		out.Synced = append(out.Synced, id)
		report.Synced++
	}

	if err := e.ledger.ApplySyncOutcome(ctx, out); err != nil {
		return report, err
	}

	pending, err := e.ledger.Pending(ctx)
	if err != nil {
		return report, err
	}
	report.Remaining = len(pending)

	e.log.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"synced":    report.Synced,
		"failed":    report.Failed,
		"abandoned": report.Abandoned,
		"orphans":   report.Orphans,
		"remaining": report.Remaining,
	}).Info("sync pass finished")

	return report, nil
}
