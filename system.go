package perfmon

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RuntimeHeap returns the Go runtime's current heap usage as
// (used, total) bytes.
func RuntimeHeap() (used, total int64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc), int64(ms.HeapSys)
}

// HeapReporter periodically feeds Go runtime heap numbers into a
// monitor's heap cells. It fills the scripting-heap slot on pure-Go
// hosts where no external runtime pushes heap values via
// ReportJSHeap.
type HeapReporter struct {
	monitor  Monitor
	interval time.Duration
	logger   *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewHeapReporter creates a stopped reporter sampling at the given
// interval. Non-positive intervals fall back to DefaultUpdateInterval.
func NewHeapReporter(m Monitor, interval time.Duration, logger *zap.Logger) *HeapReporter {
	return &HeapReporter{
		monitor:  m,
		interval: pickDuration(interval, DefaultUpdateInterval),
		logger:   logger,
	}
}

// Start launches the sampling goroutine. Idempotent.
func (r *HeapReporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Swap(true) {
		return
	}

	r.quit = make(chan struct{})
	r.wg.Add(1)
	go r.loop(r.quit)

	if r.logger != nil {
		r.logger.Debug("runtime heap reporting started",
			zap.Duration("interval", r.interval))
	}
}

// Stop halts sampling and waits for the goroutine to exit. Idempotent.
func (r *HeapReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Swap(false) {
		return
	}

	close(r.quit)
	r.wg.Wait()
}

func (r *HeapReporter) loop(quit <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-quit:
			return
		}
	}
}

func (r *HeapReporter) report() {
	used, total := RuntimeHeap()
	r.monitor.ReportJSHeap(used, total)
}
