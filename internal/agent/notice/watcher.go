package notice

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultWarningLead     = time.Minute
	defaultWatcherInterval = 15 * time.Second
)

// ExpirySource reports when the current token expires.
type ExpirySource interface {
	Expiry() (time.Time, bool)
}

// Watcher logs a warning once per token when its expiry comes within Lead.
// A renewed token gets its own warning.
type Watcher struct {
	Source   ExpirySource
	Lead     time.Duration
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time

	mu     sync.Mutex
	warned time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher returns a Watcher. Zero or negative durations take defaults.
func NewWatcher(src ExpirySource, lead, interval time.Duration, logger *slog.Logger) *Watcher {
	if lead <= 0 {
		lead = DefaultWarningLead
	}
	if interval <= 0 {
		interval = defaultWatcherInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Source:   src,
		Lead:     lead,
		Interval: interval,
		Logger:   logger,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background check. Call Stop to end it.
func (w *Watcher) Start() {
	go w.run()
}

// Stop blocks until the worker has exited.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-w.stopCh:
			return
		}
	}
}

// Check warns if the current token is about to expire and has not been
// warned about yet. It reports whether a warning was issued.
func (w *Watcher) Check() bool {
	exp, ok := w.Source.Expiry()
	if !ok {
		return false
	}

	remaining := exp.Sub(w.Now())
	if remaining <= 0 || remaining > w.Lead {
		return false
	}

	w.mu.Lock()
	if w.warned.Equal(exp) {
		w.mu.Unlock()
		return false
	}
	w.warned = exp
	w.mu.Unlock()

	w.Logger.Warn("Your session will expire soon.",
		"expires_at", exp,
		"remaining", remaining.Round(time.Second).String(),
	)
	return true
}
