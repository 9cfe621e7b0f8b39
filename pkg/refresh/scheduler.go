// Package refresh arms the proactive token refresh timer and runs the
// periodic safety-net check that catches missed timers (for example after the
// machine wakes from sleep).
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultLead     = 60 * time.Second
	DefaultInterval = 60 * time.Second
)

// Scheduler owns at most one armed timer and one safety-net worker.
type Scheduler struct {
	Lead     time.Duration
	Interval time.Duration
	Logger   *slog.Logger

	// Now is the clock used to compute timer delays.
	Now func() time.Time

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a Scheduler with the given lead. A zero or negative value falls
// back to DefaultLead.
func New(lead, interval time.Duration, logger *slog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultLead
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Lead:     lead,
		Interval: interval,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Schedule replaces any armed timer with one that calls onDue Lead before
// expiry. When that moment has already passed onDue runs straight away on its
// own goroutine, so Schedule never blocks on it.
func (s *Scheduler) Schedule(expiry time.Time, onDue func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	gen := s.gen

	delay := expiry.Sub(s.Now()) - s.Lead
	if delay <= 0 {
		s.Logger.Debug("refresh due now", "expiry", expiry)
		go s.fire(gen, onDue)
		return
	}

	s.Logger.Debug("refresh scheduled", "in", delay.Round(time.Second), "expiry", expiry)
	s.timer = time.AfterFunc(delay, func() { s.fire(gen, onDue) })
}

// Cancel disarms the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Armed reports whether a timer is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire runs onDue unless a later Schedule or Cancel superseded gen. A timer
// whose Stop lost the race still lands here and is dropped.
func (s *Scheduler) fire(gen uint64, onDue func()) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("refresh callback panicked", "panic", r)
		}
	}()
	onDue()
}

// Start launches the safety-net worker, calling check every Interval until
// Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context, check func(context.Context)) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.run(ctx, check, stopCh, doneCh)
	s.Logger.Debug("refresh safety net started", "interval", s.Interval)
}

// Stop halts the safety net and waits for an in-progress check to finish. It
// also disarms the timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelLocked()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (s *Scheduler) run(ctx context.Context, check func(context.Context), stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
