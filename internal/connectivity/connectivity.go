// Package connectivity answers "can we reach the remote right now" and
// tells subscribers when that answer flips.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Probe interface {
	IsOnline(ctx context.Context) bool
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe is online when the pinger answers within the timeout. A stale
// answer is possible; callers still treat a failed remote call as a failure.
type PingProbe struct {
	pinger  Pinger
	timeout time.Duration
}

func NewPingProbe(pinger Pinger, timeout time.Duration) *PingProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PingProbe{pinger: pinger, timeout: timeout}
}

func (p *PingProbe) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pinger.Ping(ctx) == nil
}

// Static is a probe with a fixed, settable answer.
type Static struct {
	online atomic.Bool
}

func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

func (s *Static) Set(online bool) {
	s.online.Store(online)
}

func (s *Static) IsOnline(context.Context) bool {
	return s.online.Load()
}

// Watcher polls a probe and calls subscribers on online/offline transitions.
// The first poll only records the baseline.
type Watcher struct {
	probe    Probe
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	subs    map[int]func(online bool)
	nextID  int
	known   bool
	online  bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewWatcher(probe Probe, interval time.Duration, log logrus.FieldLogger) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		probe:    probe,
		interval: interval,
		log:      log.WithField("component", "connectivity"),
		subs:     map[int]func(bool){},
	}
}

// Subscribe registers fn and returns a function that removes it.
func (w *Watcher) Subscribe(fn func(online bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Online returns the last polled state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Check polls the probe once and notifies subscribers if the state changed.
func (w *Watcher) Check(ctx context.Context) bool {
	online := w.probe.IsOnline(ctx)

	w.mu.Lock()
	changed := w.known && w.online != online
	w.known = true
	w.online = online
	var notify []func(bool)
	if changed {
		notify = make([]func(bool), 0, len(w.subs))
		for _, fn := range w.subs {
			notify = append(notify, fn)
		}
	}
	w.mu.Unlock()

	if changed {
		w.log.WithField("online", online).Info("connectivity changed")
		for _, fn := range notify {
			fn(online)
		}
	}
	return online
}

func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	w.Check(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
