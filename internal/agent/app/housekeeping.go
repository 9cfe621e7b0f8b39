package app

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops expired entries from session storage.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Housekeeping periodically removes abandoned login attempts so the store
// does not grow without bound.
type Housekeeping struct {
	Store    Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeping returns a Housekeeping running every interval. If interval
// is 0 or negative it defaults to 15 minutes.
func NewHousekeeping(store Sweeper, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &Housekeeping{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop.
func (h *Housekeeping) Start() {
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval)
}

// Stop blocks until an in-progress sweep has finished.
func (h *Housekeeping) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeping stopped")
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.cleanup()

	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeping) cleanup() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n := h.Store.Sweep(ctx)
	h.Logger.Debug("housekeeping sweep completed", "removed", n)
	return n
}
