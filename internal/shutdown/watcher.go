package shutdown

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is the cadence for exit-condition polling.
const DefaultPollInterval = 100 * time.Millisecond

// Watcher polls an external exit condition and trips the Signal when it holds.
type Watcher struct {
	Signal    *Signal
	Condition func() bool
	Interval  time.Duration
	Logger    *slog.Logger
}

// Run polls until the condition fires, the signal is set elsewhere, or ctx ends.
func (w Watcher) Run(ctx context.Context) {
	if w.Signal == nil || w.Condition == nil {
		return
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Signal.Done():
			return
		case <-ticker.C:
			if !w.Condition() {
				continue
			}
			if w.Logger != nil {
				w.Logger.Info("exit requested by watcher")
			}
			w.Signal.RequestExit()
			return
		}
	}
}
