package perfmon

// PlatformMetrics is the capability set the monitor needs from the
// host platform: frame-tick sources for the rendering and scripting
// contexts plus a process memory reader. One implementation is
// selected per build target; hosts with richer sources (display-sync
// callbacks, an embedded scripting runtime) supply their own through
// Config.Platform.
//
// A source that cannot tick on a platform stays permanently idle
// rather than erroring, and a memory reader that fails reports 0.
type PlatformMetrics interface {
	// StartUIFPSTracking begins delivering rendering-frame ticks to
	// onTick with timestamps in seconds.
	StartUIFPSTracking(onTick func(timestampSeconds float64))
	// StopUIFPSTracking stops rendering-frame delivery.
	StopUIFPSTracking()
	// StartJSFPSTracking begins delivering scripting-frame ticks.
	// Permanently idle on platforms where scripting frames are pushed
	// through Monitor.ReportJSFrameTick instead.
	StartJSFPSTracking(onTick func(timestampSeconds float64))
	// StopJSFPSTracking stops scripting-frame delivery.
	StopJSFPSTracking()
	// ResidentMemoryBytes returns the process resident set size, or 0
	// when it cannot be read.
	ResidentMemoryBytes() int64
}
