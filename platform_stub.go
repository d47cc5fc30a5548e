//go:build !linux
// +build !linux

package perfmon

// stubPlatform is the placeholder on platforms without a procfs. Both
// frame sources are permanently idle and memory reads report 0; the
// monitor degrades rather than erroring.
type stubPlatform struct{}

// NewPlatformMetrics returns the permanently idle stub implementation.
func NewPlatformMetrics() PlatformMetrics {
	return &stubPlatform{}
}

func (p *stubPlatform) StartUIFPSTracking(onTick func(float64)) {}

func (p *stubPlatform) StopUIFPSTracking() {}

func (p *stubPlatform) StartJSFPSTracking(onTick func(float64)) {}

func (p *stubPlatform) StopJSFPSTracking() {}

func (p *stubPlatform) ResidentMemoryBytes() int64 {
	return 0
}
