package perfmon

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Process-wide monitor instance. The singleton is explicit state with
// an init-once/teardown lifecycle so host-runtime bindings have one
// stable target to marshal calls into.
var (
	globalMonitor  Monitor
	globalExporter *RemoteWriteExporter
	globalHeap     *HeapReporter
	initOnce       sync.Once
)

// Init initializes the process-wide monitor. The monitor is created
// stopped; call Start to begin tracking. When the configuration
// carries a remote-write URL an exporter is attached, and when
// ReportRuntimeHeap is set heap self-reporting begins immediately.
func Init(config Config) error {
	var initErr error

	initOnce.Do(func() {
		m := NewMonitor(config)

		if config.Export.RemoteWriteURL != "" {
			exp, err := NewRemoteWriteExporter(config.Export, config.Logger)
			if err != nil {
				initErr = err
				return
			}
			exp.Attach(m)
			globalExporter = exp
		}

		if config.ReportRuntimeHeap {
			globalHeap = NewHeapReporter(m, config.UpdateInterval, config.Logger)
			globalHeap.Start()
		}

		globalMonitor = m

		if config.Logger != nil {
			config.Logger.Info("perf monitor initialized",
				zap.Duration("interval", config.UpdateInterval),
				zap.Int("maxHistorySamples", config.MaxHistorySamples),
				zap.Int("targetFps", config.TargetFPS),
				zap.Bool("remoteWrite", globalExporter != nil))
		}
	})

	return initErr
}

// Shutdown stops and releases the process-wide monitor.
func Shutdown() {
	if globalHeap != nil {
		globalHeap.Stop()
		globalHeap = nil
	}
	if globalMonitor != nil {
		globalMonitor.Stop()
		globalMonitor = nil
		globalExporter = nil
	}
}

// Start starts the process-wide monitor.
func Start() {
	if globalMonitor != nil {
		globalMonitor.Start()
	}
}

// Stop stops the process-wide monitor, blocking until its notifier
// has exited.
func Stop() {
	if globalMonitor != nil {
		globalMonitor.Stop()
	}
}

// IsRunning reports whether the process-wide monitor is started.
func IsRunning() bool {
	if globalMonitor != nil {
		return globalMonitor.IsRunning()
	}
	return false
}

// GetMetrics builds a snapshot from the process-wide monitor.
func GetMetrics() Snapshot {
	if globalMonitor != nil {
		return globalMonitor.GetMetrics()
	}
	return Snapshot{}
}

// GetHistory returns the process-wide monitor's rate history.
func GetHistory() History {
	if globalMonitor != nil {
		return globalMonitor.GetHistory()
	}
	return History{}
}

// Subscribe registers a snapshot callback with the process-wide
// monitor and returns its id, or 0 when the monitor is not
// initialized.
func Subscribe(fn SnapshotFunc) uint64 {
	if globalMonitor != nil {
		return globalMonitor.Subscribe(fn)
	}
	return 0
}

// Unsubscribe removes a callback from the process-wide monitor.
func Unsubscribe(id uint64) {
	if globalMonitor != nil {
		globalMonitor.Unsubscribe(id)
	}
}

// ReportJSFrameTick feeds a scripting-frame timestamp in milliseconds.
func ReportJSFrameTick(timestampMs float64) {
	if globalMonitor != nil {
		globalMonitor.ReportJSFrameTick(timestampMs)
	}
}

// ReportLongTask records one long task.
func ReportLongTask(durationMs float64) {
	if globalMonitor != nil {
		globalMonitor.ReportLongTask(durationMs)
	}
}

// ReportSlowEvent records one slow event.
func ReportSlowEvent(durationMs float64) {
	if globalMonitor != nil {
		globalMonitor.ReportSlowEvent(durationMs)
	}
}

// ReportRender records one render pass.
func ReportRender(durationMs float64) {
	if globalMonitor != nil {
		globalMonitor.ReportRender(durationMs)
	}
}

// ReportJSHeap overwrites the last-known scripting heap values.
func ReportJSHeap(usedBytes, totalBytes int64) {
	if globalMonitor != nil {
		globalMonitor.ReportJSHeap(usedBytes, totalBytes)
	}
}

// Configure applies runtime settings to the process-wide monitor.
func Configure(update ConfigUpdate) {
	if globalMonitor != nil {
		globalMonitor.Configure(update)
	}
}

// Reset zeroes the process-wide monitor's trackers and counters.
func Reset() {
	if globalMonitor != nil {
		globalMonitor.Reset()
	}
}

// HealthCheck verifies the process-wide monitor is initialized.
func HealthCheck() error {
	if globalMonitor == nil {
		return fmt.Errorf("perf monitor not initialized")
	}
	return nil
}
