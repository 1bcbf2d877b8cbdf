package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces add/change paths into a single pending set and
// flushes the set (as a slice) to out after window has elapsed with no
// further activity, resetting the timer on every Add.
type debouncer struct {
	window time.Duration
	out    chan<- []string

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
}

func newDebouncer(window time.Duration, out chan<- []string) *debouncer {
	return &debouncer{window: window, out: out, pending: make(map[string]struct{})}
}

// Add records path as pending and (re)schedules a flush window away.
func (d *debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]string, 0, len(d.pending))
	for p := range d.pending {
		batch = append(batch, p)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	select {
	case d.out <- batch:
	default:
		slog.Warn("watcher: debounce flush dropped, output channel full", slog.Int("paths", len(batch)))
	}
}

// Stop cancels any pending timer. It does not flush.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
