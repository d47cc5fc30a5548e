//go:build linux
// +build linux

package perfmon

import (
	"errors"
	"os"
	"testing"
)

func TestResidentMemoryBytesParsesVmRSS(t *testing.T) {
	t.Cleanup(func() { procReadFile = os.ReadFile })

	procReadFile = func(path string) ([]byte, error) {
		return []byte("VmPeak:\t 123 kB\nVmRSS:\t    2048 kB\nVmData:\t 99 kB\n"), nil
	}

	p := NewPlatformMetrics()
	if got := p.ResidentMemoryBytes(); got != 2048*1024 {
		t.Fatalf("expected %d bytes, got %d", 2048*1024, got)
	}
}

func TestResidentMemoryBytesDegradesToZero(t *testing.T) {
	t.Cleanup(func() { procReadFile = os.ReadFile })

	cases := []struct {
		name string
		data []byte
		err  error
	}{
		{"readError", nil, errors.New("boom")},
		{"noVmRSS", []byte("VmPeak:\t 123 kB\n"), nil},
		{"malformedLine", []byte("VmRSS:\n"), nil},
		{"nonNumeric", []byte("VmRSS:\tabc kB\n"), nil},
	}
	for _, tc := range cases {
		procReadFile = func(string) ([]byte, error) { return tc.data, tc.err }
		p := NewPlatformMetrics()
		if got := p.ResidentMemoryBytes(); got != 0 {
			t.Fatalf("%s: expected 0, got %d", tc.name, got)
		}
	}
}

func TestProcPlatformFrameSourcesAreIdle(t *testing.T) {
	p := NewPlatformMetrics()

	ticked := false
	p.StartUIFPSTracking(func(float64) { ticked = true })
	p.StartJSFPSTracking(func(float64) { ticked = true })
	p.StopUIFPSTracking()
	p.StopJSFPSTracking()

	if ticked {
		t.Fatalf("headless frame sources must stay permanently idle")
	}
}
