package artifact

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an undelivered artifact is kept.
	DefaultTTL = time.Hour
	// DefaultSweepInterval is how often the janitor looks for expired files.
	DefaultSweepInterval = 5 * time.Minute
)

// SweepFunc is told how many files each sweep removed.
type SweepFunc func(removed int)

// Janitor periodically removes expired files from a Store.
type Janitor struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	onSweep  SweepFunc

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a janitor. Non-positive durations fall back to the
// defaults.
func NewJanitor(store *Store, ttl, interval time.Duration, logger *slog.Logger) *Janitor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// OnSweep registers a callback run after every sweep. Call before Start.
func (j *Janitor) OnSweep(fn SweepFunc) {
	j.onSweep = fn
}

// Start begins sweeping in the background.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.run()
}

// Stop halts the janitor and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one pass immediately and returns how many files it removed.
func (j *Janitor) Sweep() int {
	removed, err := j.store.Sweep(j.ttl)
	if err != nil {
		j.logger.Warn("artifact sweep incomplete", "removed", removed, "error", err)
	} else if removed > 0 {
		j.logger.Info("expired artifacts removed", "removed", removed)
	}

	if j.onSweep != nil {
		j.onSweep(removed)
	}
	return removed
}
