package perfmon

import (
	"sync"
	"testing"
)

// windowDriver feeds synthetic tick streams that close one-second
// windows at exact rates.
type windowDriver struct {
	tr     *FPSTracker
	ts     float64
	opened bool
}

// closeWindow delivers enough evenly spaced ticks to close one window
// with exactly the given rate (elapsed is exactly 1.0 second).
func (d *windowDriver) closeWindow(rate int) {
	n := rate
	if !d.opened {
		// The first tick ever opens the window and counts one frame.
		d.tr.OnFrameTick(d.ts)
		d.opened = true
		n--
	}
	for i := 1; i < n; i++ {
		d.tr.OnFrameTick(d.ts + float64(i)/float64(n))
	}
	d.tr.OnFrameTick(d.ts + 1.0)
	d.ts += 1.0
}

func TestTrackerFirstTickEmitsNoSample(t *testing.T) {
	tr := NewFPSTracker(10)
	tr.OnFrameTick(5.0)

	if got := tr.CurrentFPS(); got != 0 {
		t.Fatalf("expected current fps 0 after first tick, got %d", got)
	}
	if got := len(tr.Samples()); got != 0 {
		t.Fatalf("expected no samples after first tick, got %d", got)
	}
}

func TestTrackerRateRounding(t *testing.T) {
	cases := []struct {
		name     string
		frames   int
		closeAt  float64
		expected int
	}{
		{"exactSecond", 59, 1.0, 59},
		{"lateClose", 61, 1.02, 60}, // round(61/1.02) = round(59.80)
	}

	for _, tc := range cases {
		tr := NewFPSTracker(10)
		tr.OnFrameTick(0)
		// Intermediate ticks stay inside the window; the last tick
		// closes it at the chosen elapsed time.
		for i := 1; i < tc.frames-1; i++ {
			tr.OnFrameTick(float64(i) / float64(tc.frames))
		}
		tr.OnFrameTick(tc.closeAt)

		if got := tr.CurrentFPS(); got != tc.expected {
			t.Fatalf("%s: expected %d fps, got %d", tc.name, tc.expected, got)
		}
		samples := tr.Samples()
		if len(samples) != 1 || samples[0] != tc.expected {
			t.Fatalf("%s: unexpected samples %v", tc.name, samples)
		}
	}
}

func TestTrackerNoCloseWithoutTicks(t *testing.T) {
	tr := NewFPSTracker(10)
	d := &windowDriver{tr: tr}
	d.closeWindow(60)

	// Ticks inside the next window but none past the second mark: the
	// window stays open and no further sample is emitted.
	tr.OnFrameTick(d.ts + 0.3)
	tr.OnFrameTick(d.ts + 0.6)

	if got := len(tr.Samples()); got != 1 {
		t.Fatalf("expected 1 sample, got %d", got)
	}
}

func TestTrackerRingBufferEvictsOldestFirst(t *testing.T) {
	tr := NewFPSTracker(3)
	d := &windowDriver{tr: tr}
	for _, rate := range []int{50, 51, 52, 53, 54} {
		d.closeWindow(rate)
	}

	samples := tr.Samples()
	if len(samples) != 3 {
		t.Fatalf("expected capacity-bounded history of 3, got %d", len(samples))
	}
	want := []int{52, 53, 54}
	for i, s := range samples {
		if s != want[i] {
			t.Fatalf("expected samples %v, got %v", want, samples)
		}
	}
	if got := tr.CurrentFPS(); got != 54 {
		t.Fatalf("expected current fps 54, got %d", got)
	}
}

func TestTrackerMinMax(t *testing.T) {
	tr := NewFPSTracker(10)
	if tr.MinFPS() != 0 || tr.MaxFPS() != 0 {
		t.Fatalf("fresh tracker should report 0/0, got %d/%d", tr.MinFPS(), tr.MaxFPS())
	}

	d := &windowDriver{tr: tr}
	d.closeWindow(60)
	d.closeWindow(45)
	d.closeWindow(55)

	if got := tr.MinFPS(); got != 45 {
		t.Fatalf("expected min 45, got %d", got)
	}
	if got := tr.MaxFPS(); got != 60 {
		t.Fatalf("expected max 60, got %d", got)
	}
}

func TestTrackerDroppedAndStutterAccounting(t *testing.T) {
	tr := NewFPSTracker(10)
	tr.SetTargetFPS(60)

	d := &windowDriver{tr: tr}
	for _, rate := range []int{60, 55, 50, 61} {
		d.closeWindow(rate)
	}

	// Dropped: 0 + 5 + 10 + 0. Stutters: the two windows with >= 4
	// dropped frames.
	if got := tr.DroppedFrames(); got != 15 {
		t.Fatalf("expected 15 dropped frames, got %d", got)
	}
	if got := tr.StutterCount(); got != 2 {
		t.Fatalf("expected 2 stutters, got %d", got)
	}
}

func TestTrackerSetTargetAffectsOnlyFutureWindows(t *testing.T) {
	tr := NewFPSTracker(10)
	tr.SetTargetFPS(60)

	d := &windowDriver{tr: tr}
	d.closeWindow(50)
	if got := tr.DroppedFrames(); got != 10 {
		t.Fatalf("expected 10 dropped frames, got %d", got)
	}

	tr.SetTargetFPS(30)
	d.closeWindow(50)
	if got := tr.DroppedFrames(); got != 10 {
		t.Fatalf("lowered target must not add drops, got %d", got)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewFPSTracker(5)
	d := &windowDriver{tr: tr}
	d.closeWindow(40)
	d.closeWindow(42)

	tr.Reset()

	if got := tr.CurrentFPS(); got != 0 {
		t.Fatalf("expected current fps 0 after reset, got %d", got)
	}
	if got := len(tr.Samples()); got != 0 {
		t.Fatalf("expected empty history after reset, got %d samples", got)
	}
	if tr.MinFPS() != 0 || tr.MaxFPS() != 0 {
		t.Fatalf("expected 0/0 extremes after reset, got %d/%d", tr.MinFPS(), tr.MaxFPS())
	}
	if tr.DroppedFrames() != 0 || tr.StutterCount() != 0 {
		t.Fatalf("expected zeroed counters after reset")
	}

	// The next tick opens a fresh window again.
	d2 := &windowDriver{tr: tr}
	d2.closeWindow(33)
	if got := tr.CurrentFPS(); got != 33 {
		t.Fatalf("expected tracker usable after reset, got %d", got)
	}
}

func TestTrackerConcurrentReaders(t *testing.T) {
	tr := NewFPSTracker(16)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Reader threads poll every accessor while one producer ticks.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				samples := tr.Samples()
				if len(samples) > 16 {
					t.Errorf("history exceeded capacity: %d", len(samples))
					return
				}
				_ = tr.CurrentFPS()
				_ = tr.MinFPS()
				_ = tr.MaxFPS()
				_ = tr.DroppedFrames()
				_ = tr.StutterCount()
			}
		}()
	}

	d := &windowDriver{tr: tr}
	for rate := 30; rate < 90; rate++ {
		d.closeWindow(rate)
	}
	close(stop)
	wg.Wait()

	if got := len(tr.Samples()); got != 16 {
		t.Fatalf("expected full history of 16, got %d", got)
	}
}
