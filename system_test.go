package perfmon

import (
	"testing"
	"time"
)

func TestRuntimeHeap(t *testing.T) {
	used, total := RuntimeHeap()
	if used <= 0 || total <= 0 {
		t.Fatalf("expected positive heap numbers, got %d/%d", used, total)
	}
	if used > total {
		t.Fatalf("heap used %d exceeds total %d", used, total)
	}
}

func TestHeapReporterFeedsMonitor(t *testing.T) {
	m, _ := newTestMonitor(time.Hour)

	r := NewHeapReporter(m, time.Hour, nil)
	r.report()

	s := m.GetMetrics()
	if s.JSHeapUsedBytes <= 0 || s.JSHeapTotalBytes <= 0 {
		t.Fatalf("expected heap cells populated, got %d/%d", s.JSHeapUsedBytes, s.JSHeapTotalBytes)
	}
}

func TestHeapReporterLifecycleIdempotent(t *testing.T) {
	m, _ := newTestMonitor(time.Hour)
	r := NewHeapReporter(m, 5*time.Millisecond, nil)

	r.Start()
	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for m.GetMetrics().JSHeapUsedBytes == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.GetMetrics().JSHeapUsedBytes == 0 {
		t.Fatalf("reporter loop never sampled the heap")
	}

	r.Stop()
	r.Stop()
}
