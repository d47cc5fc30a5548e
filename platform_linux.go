//go:build linux
// +build linux

package perfmon

import (
	"os"
	"strconv"
	"strings"
)

// procReadFile is swapped out in tests.
var procReadFile = os.ReadFile

// procPlatform reads process metrics from procfs. There is no
// display-sync callback on a headless host, so both frame sources are
// permanently idle; rendering and scripting ticks arrive through the
// monitor's reporting surface instead.
type procPlatform struct{}

// NewPlatformMetrics returns the procfs-backed platform implementation.
func NewPlatformMetrics() PlatformMetrics {
	return &procPlatform{}
}

func (p *procPlatform) StartUIFPSTracking(onTick func(float64)) {}

func (p *procPlatform) StopUIFPSTracking() {}

func (p *procPlatform) StartJSFPSTracking(onTick func(float64)) {}

func (p *procPlatform) StopJSFPSTracking() {}

// ResidentMemoryBytes parses VmRSS out of /proc/self/status.
func (p *procPlatform) ResidentMemoryBytes() int64 {
	data, err := procReadFile("/proc/self/status")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
