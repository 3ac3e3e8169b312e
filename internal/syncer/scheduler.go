package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mesapos/backend/internal/connectivity"
	"mesapos/backend/internal/domain"
)

type Runner interface {
	ProcessPendingSyncs(ctx context.Context) (domain.SyncReport, error)
}

// Scheduler runs sync passes on a ticker and whenever the watcher reports
// the remote is reachable again.
type Scheduler struct {
	runner   Runner
	watcher  *connectivity.Watcher
	interval time.Duration
	log      logrus.FieldLogger

	trigger chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu          sync.RWMutex
	running     bool
	unsubscribe func()
	lastReport  *domain.SyncReport
	lastErr     error
}

func NewScheduler(runner Runner, watcher *connectivity.Watcher, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		runner:   runner,
		watcher:  watcher,
		interval: interval,
		log:      log.WithField("component", "scheduler"),
		trigger:  make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	if s.watcher != nil {
		s.unsubscribe = s.watcher.Subscribe(func(online bool) {
			if online {
				s.Trigger()
			}
		})
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
	s.log.WithField("interval", s.interval.String()).Info("sync scheduler started")
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("sync scheduler stopped")
}

// Trigger asks for a pass as soon as possible. Requests made while one is
// already waiting collapse into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastReport returns the outcome of the most recent pass, if any.
func (s *Scheduler) LastReport() (*domain.SyncReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return nil, s.lastErr
	}
	report := *s.lastReport
	return &report, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.run(ctx)
		case <-s.trigger:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.runner.ProcessPendingSyncs(ctx)

	s.mu.Lock()
	s.lastReport = &report
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Error("background sync failed")
	}
}
