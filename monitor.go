package perfmon

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultUpdateInterval is the subscriber notification cadence used
// when none is configured.
const DefaultUpdateInterval = 500 * time.Millisecond

// Snapshot is a point-in-time aggregate of every tracked metric.
// Each field is internally consistent, but cross-field atomicity
// relative to concurrent reporters is not guaranteed.
type Snapshot struct {
	UIFPS                int     `json:"uiFps"`
	JSFPS                int     `json:"jsFps"`
	ResidentMemoryBytes  int64   `json:"residentMemoryBytes"`
	JSHeapUsedBytes      int64   `json:"jsHeapUsedBytes"`
	JSHeapTotalBytes     int64   `json:"jsHeapTotalBytes"`
	DroppedFrames        int64   `json:"droppedFrames"`
	StutterCount         int     `json:"stutterCount"`
	TimestampMs          int64   `json:"timestampMs"`
	LongTaskCount        int64   `json:"longTaskCount"`
	LongTaskTotalMs      int64   `json:"longTaskTotalMs"`
	SlowEventCount       int64   `json:"slowEventCount"`
	MaxEventDurationMs   float64 `json:"maxEventDurationMs"`
	RenderCount          int64   `json:"renderCount"`
	LastRenderDurationMs float64 `json:"lastRenderDurationMs"`
}

// History holds both trackers' full rate history plus their extremes.
type History struct {
	UIFPSSamples []int `json:"uiFpsSamples"`
	JSFPSSamples []int `json:"jsFpsSamples"`
	UIFPSMin     int   `json:"uiFpsMin"`
	UIFPSMax     int   `json:"uiFpsMax"`
	JSFPSMin     int   `json:"jsFpsMin"`
	JSFPSMax     int   `json:"jsFpsMax"`
}

// SnapshotFunc receives periodic snapshots from the notifier.
// Callbacks run on the notifier goroutine and must not call the
// monitor's Stop (the notifier joins itself on Stop).
type SnapshotFunc func(Snapshot)

// ConfigUpdate carries the runtime-adjustable settings accepted by
// Configure. Non-positive MaxHistorySamples and TargetFPS are ignored
// individually; UpdateInterval is stored as given, with the notifier
// falling back to DefaultUpdateInterval when it is non-positive.
type ConfigUpdate struct {
	UpdateInterval    time.Duration
	MaxHistorySamples int
	TargetFPS         int
}

// Monitor is the main interface for in-process performance telemetry:
// it owns the UI and JS rate trackers, merges them with
// externally-reported counters, and fans out periodic snapshots.
type Monitor interface {
	// Start registers with the platform frame-tick sources and starts
	// the notifier goroutine. Idempotent.
	Start()
	// Stop unregisters from the frame sources and blocks until the
	// notifier goroutine has fully exited, so no notification fires
	// after it returns. Idempotent.
	Stop()
	// IsRunning reports whether the monitor is started.
	IsRunning() bool
	// GetMetrics builds a snapshot synchronously, independent of the
	// notifier cadence.
	GetMetrics() Snapshot
	// GetHistory returns both trackers' history and extremes.
	GetHistory() History
	// Subscribe registers a snapshot callback and returns its id.
	// Ids are assigned from a strictly increasing counter starting at
	// 1 and are never reused.
	Subscribe(fn SnapshotFunc) uint64
	// Unsubscribe removes a callback. Unknown ids are a no-op. Once
	// Unsubscribe returns, the id receives no further notifications.
	Unsubscribe(id uint64)
	// ReportJSFrameTick feeds a scripting-frame timestamp in
	// milliseconds, for hosts with no native scripting frame source.
	ReportJSFrameTick(timestampMs float64)
	// ReportLongTask records one long task of the given duration.
	ReportLongTask(durationMs float64)
	// ReportSlowEvent records one slow event; the running maximum
	// duration never decreases outside a Reset.
	ReportSlowEvent(durationMs float64)
	// ReportRender records one render pass, overwriting the last
	// render duration.
	ReportRender(durationMs float64)
	// ReportJSHeap overwrites the last-known scripting heap values.
	ReportJSHeap(usedBytes, totalBytes int64)
	// Configure applies runtime settings; see ConfigUpdate.
	Configure(update ConfigUpdate)
	// Reset zeroes both trackers and every auxiliary counter without
	// stopping the monitor or touching subscribers.
	Reset()
}

// monitorImpl is the implementation of Monitor.
type monitorImpl struct {
	logger   *zap.Logger
	platform PlatformMetrics

	running        atomic.Bool
	updateInterval atomic.Duration

	// trackerMu guards the tracker pointers and targetFPS so readers
	// never observe a partially constructed replacement.
	trackerMu sync.RWMutex
	uiTracker *FPSTracker
	jsTracker *FPSTracker
	targetFPS int

	subscriberMu sync.Mutex
	subscribers  map[uint64]SnapshotFunc
	nextSubID    atomic.Uint64

	// Auxiliary counters: independent atomic cells, no cross-counter
	// consistency required. Heap values are last-observed, the rest
	// are cumulative between resets.
	jsHeapUsed       atomic.Int64
	jsHeapTotal      atomic.Int64
	longTaskCount    atomic.Int64
	longTaskTotalMs  atomic.Int64
	slowEventCount   atomic.Int64
	maxEventDuration atomic.Float64
	renderCount      atomic.Int64
	lastRenderMs     atomic.Float64

	// lifecycleMu serializes start/stop transitions around the
	// notifier goroutine handle.
	lifecycleMu sync.Mutex
	quit        chan struct{}
	wg          sync.WaitGroup
}

// NewMonitor creates a stopped monitor from the given configuration.
// Zero-value config fields fall back to defaults; a nil Platform
// selects the build target's platform implementation.
func NewMonitor(config Config) Monitor {
	platform := config.Platform
	if platform == nil {
		platform = NewPlatformMetrics()
	}

	target := config.TargetFPS
	if target <= 0 {
		target = DefaultTargetFPS
	}

	m := &monitorImpl{
		logger:      config.Logger,
		platform:    platform,
		uiTracker:   NewFPSTracker(config.MaxHistorySamples),
		jsTracker:   NewFPSTracker(config.MaxHistorySamples),
		targetFPS:   target,
		subscribers: make(map[uint64]SnapshotFunc),
	}
	m.uiTracker.SetTargetFPS(target)
	m.jsTracker.SetTargetFPS(target)
	m.updateInterval.Store(pickDuration(config.UpdateInterval, DefaultUpdateInterval))
	return m
}

// pickDuration returns def when v is non-positive.
func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// uiFPSTracker re-reads the tracker pointer under the lock so tick
// callbacks follow tracker replacement on Configure.
func (m *monitorImpl) uiFPSTracker() *FPSTracker {
	m.trackerMu.RLock()
	defer m.trackerMu.RUnlock()
	return m.uiTracker
}

func (m *monitorImpl) jsFPSTracker() *FPSTracker {
	m.trackerMu.RLock()
	defer m.trackerMu.RUnlock()
	return m.jsTracker
}

// Start implements Monitor interface
func (m *monitorImpl) Start() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.running.Swap(true) {
		return
	}

	m.platform.StartUIFPSTracking(func(ts float64) {
		m.uiFPSTracker().OnFrameTick(ts)
	})
	// May be permanently idle on platforms where scripting frames are
	// pushed through ReportJSFrameTick instead.
	m.platform.StartJSFPSTracking(func(ts float64) {
		m.jsFPSTracker().OnFrameTick(ts)
	})

	m.quit = make(chan struct{})
	m.wg.Add(1)
	go m.notifyLoop(m.quit)

	if m.logger != nil {
		m.logger.Info("perf monitor started",
			zap.Duration("interval", m.notifyInterval()))
	}
}

// Stop implements Monitor interface. Waiting for the notifier happens
// under the lifecycle lock, so Stop must not be called from inside a
// subscriber callback.
func (m *monitorImpl) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.running.Swap(false) {
		return
	}

	m.platform.StopUIFPSTracking()
	m.platform.StopJSFPSTracking()

	close(m.quit)
	m.wg.Wait()

	if m.logger != nil {
		m.logger.Info("perf monitor stopped")
	}
}

// IsRunning implements Monitor interface
func (m *monitorImpl) IsRunning() bool {
	return m.running.Load()
}

func (m *monitorImpl) notifyInterval() time.Duration {
	return pickDuration(m.updateInterval.Load(), DefaultUpdateInterval)
}

// notifyLoop is the periodic notifier goroutine. Interval changes via
// Configure take effect on the next cycle.
func (m *monitorImpl) notifyLoop(quit <-chan struct{}) {
	defer m.wg.Done()

	timer := time.NewTimer(m.notifyInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			m.notifySubscribers()
			timer.Reset(m.notifyInterval())
		case <-quit:
			return
		}
	}
}

// notifySubscribers holds the registry lock for the whole fan-out so
// a completed Unsubscribe is final.
func (m *monitorImpl) notifySubscribers() {
	snapshot := m.GetMetrics()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for _, fn := range m.subscribers {
		fn(snapshot)
	}
}

// GetMetrics implements Monitor interface
func (m *monitorImpl) GetMetrics() Snapshot {
	m.trackerMu.RLock()
	ui, js := m.uiTracker, m.jsTracker
	m.trackerMu.RUnlock()

	return Snapshot{
		UIFPS:                ui.CurrentFPS(),
		JSFPS:                js.CurrentFPS(),
		ResidentMemoryBytes:  m.platform.ResidentMemoryBytes(),
		JSHeapUsedBytes:      m.jsHeapUsed.Load(),
		JSHeapTotalBytes:     m.jsHeapTotal.Load(),
		DroppedFrames:        ui.DroppedFrames() + js.DroppedFrames(),
		StutterCount:         ui.StutterCount() + js.StutterCount(),
		TimestampMs:          time.Now().UnixMilli(),
		LongTaskCount:        m.longTaskCount.Load(),
		LongTaskTotalMs:      m.longTaskTotalMs.Load(),
		SlowEventCount:       m.slowEventCount.Load(),
		MaxEventDurationMs:   m.maxEventDuration.Load(),
		RenderCount:          m.renderCount.Load(),
		LastRenderDurationMs: m.lastRenderMs.Load(),
	}
}

// GetHistory implements Monitor interface
func (m *monitorImpl) GetHistory() History {
	m.trackerMu.RLock()
	ui, js := m.uiTracker, m.jsTracker
	m.trackerMu.RUnlock()

	return History{
		UIFPSSamples: ui.Samples(),
		JSFPSSamples: js.Samples(),
		UIFPSMin:     ui.MinFPS(),
		UIFPSMax:     ui.MaxFPS(),
		JSFPSMin:     js.MinFPS(),
		JSFPSMax:     js.MaxFPS(),
	}
}

// Subscribe implements Monitor interface
func (m *monitorImpl) Subscribe(fn SnapshotFunc) uint64 {
	id := m.nextSubID.Inc()
	m.subscriberMu.Lock()
	m.subscribers[id] = fn
	m.subscriberMu.Unlock()
	return id
}

// Unsubscribe implements Monitor interface
func (m *monitorImpl) Unsubscribe(id uint64) {
	m.subscriberMu.Lock()
	delete(m.subscribers, id)
	m.subscriberMu.Unlock()
}

// ReportJSFrameTick implements Monitor interface
func (m *monitorImpl) ReportJSFrameTick(timestampMs float64) {
	m.jsFPSTracker().OnFrameTick(timestampMs / 1000.0)
}

// ReportLongTask implements Monitor interface
func (m *monitorImpl) ReportLongTask(durationMs float64) {
	m.longTaskCount.Inc()
	m.longTaskTotalMs.Add(int64(durationMs))
}

// ReportSlowEvent implements Monitor interface
func (m *monitorImpl) ReportSlowEvent(durationMs float64) {
	m.slowEventCount.Inc()
	for {
		current := m.maxEventDuration.Load()
		if durationMs <= current {
			return
		}
		if m.maxEventDuration.CompareAndSwap(current, durationMs) {
			return
		}
	}
}

// ReportRender implements Monitor interface
func (m *monitorImpl) ReportRender(durationMs float64) {
	m.renderCount.Inc()
	m.lastRenderMs.Store(durationMs)
}

// ReportJSHeap implements Monitor interface
func (m *monitorImpl) ReportJSHeap(usedBytes, totalBytes int64) {
	m.jsHeapUsed.Store(usedBytes)
	m.jsHeapTotal.Store(totalBytes)
}

// Configure implements Monitor interface
func (m *monitorImpl) Configure(update ConfigUpdate) {
	m.updateInterval.Store(update.UpdateInterval)

	m.trackerMu.Lock()
	if update.MaxHistorySamples > 0 {
		// Wholesale replacement: history and aggregates are discarded.
		m.uiTracker = NewFPSTracker(update.MaxHistorySamples)
		m.jsTracker = NewFPSTracker(update.MaxHistorySamples)
		m.uiTracker.SetTargetFPS(m.targetFPS)
		m.jsTracker.SetTargetFPS(m.targetFPS)
	}
	if update.TargetFPS > 0 {
		m.targetFPS = update.TargetFPS
		m.uiTracker.SetTargetFPS(update.TargetFPS)
		m.jsTracker.SetTargetFPS(update.TargetFPS)
	}
	m.trackerMu.Unlock()

	if m.logger != nil {
		m.logger.Debug("perf monitor configured",
			zap.Duration("interval", update.UpdateInterval),
			zap.Int("maxHistorySamples", update.MaxHistorySamples),
			zap.Int("targetFps", update.TargetFPS))
	}
}

// Reset implements Monitor interface
func (m *monitorImpl) Reset() {
	m.trackerMu.RLock()
	ui, js := m.uiTracker, m.jsTracker
	m.trackerMu.RUnlock()

	ui.Reset()
	js.Reset()

	m.jsHeapUsed.Store(0)
	m.jsHeapTotal.Store(0)
	m.longTaskCount.Store(0)
	m.longTaskTotalMs.Store(0)
	m.slowEventCount.Store(0)
	m.maxEventDuration.Store(0)
	m.renderCount.Store(0)
	m.lastRenderMs.Store(0)
}
