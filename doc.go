// Package perfmon provides a lightweight, continuously-running
// performance telemetry aggregator embedded inside an application
// process: windowed FPS tracking for rendering and scripting frame
// streams, memory and latency counters, and periodic snapshot fan-out
// to subscribers, with optional Prometheus Remote Write export.
//
// Design goals:
//   - Minimal overhead on frame-tick and reporter hot paths
//   - Thread-safe primitives built with atomic operations
//   - Bounded memory via fixed-capacity ring-buffer history
//   - Clamp/no-op error policy: instrumentation never crashes the host
//
// Basic usage:
//
//	config := perfmon.DefaultConfig()
//	config.UpdateInterval = time.Second
//
//	if err := perfmon.Init(config); err != nil {
//	  log.Fatal(err)
//	}
//	defer perfmon.Shutdown()
//
//	perfmon.Start()
//	id := perfmon.Subscribe(func(s perfmon.Snapshot) {
//	  fmt.Println("ui fps:", s.UIFPS)
//	})
//	defer perfmon.Unsubscribe(id)
//
//	perfmon.ReportJSFrameTick(float64(time.Now().UnixMilli()))
//	perfmon.ReportLongTask(72)
package perfmon
