package perfmon

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	// DefaultMaxSamples bounds each tracker's rate history when no
	// capacity is configured.
	DefaultMaxSamples = 60

	// DefaultTargetFPS is the assumed display refresh rate used for
	// dropped-frame estimation.
	DefaultTargetFPS = 60

	// stutterThreshold is the per-window dropped-frame count at which
	// the window counts as a stutter.
	stutterThreshold = 4
)

// FPSTracker turns a stream of monotonic frame timestamps into a
// bounded ring buffer of per-second rate samples plus aggregate
// statistics (min/max, dropped frames, stutters).
//
// Frame counting matches the classic FPS-graph approach: count ticks
// inside roughly one-second windows and record round(frames/elapsed)
// when a window closes. The tracker is tick-driven only; if ticks stop
// arriving the open window simply never closes.
//
// Safe for one tick producer plus any number of concurrent readers.
// Timestamps must be delivered in non-decreasing order.
type FPSTracker struct {
	mu         sync.Mutex
	samples    []int
	writeIndex int
	count      int

	// Open window accumulation.
	windowStart  float64
	frameCount   int
	hasFirstTick bool

	minFPS        int
	maxFPS        int
	droppedFrames int64
	stutterCount  int
	targetFPS     int

	// Lock-free cell so frequent pollers never contend with tick
	// processing.
	currentFPS atomic.Int64
}

// NewFPSTracker creates a tracker holding at most maxSamples history
// entries. Non-positive capacities fall back to DefaultMaxSamples.
func NewFPSTracker(maxSamples int) *FPSTracker {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &FPSTracker{
		samples:   make([]int, maxSamples),
		minFPS:    math.MaxInt32,
		targetFPS: DefaultTargetFPS,
	}
}

// OnFrameTick records one completed frame at the given monotonic
// timestamp in seconds. The first tick after construction or Reset
// opens the accumulation window and counts as one frame; once a full
// second has elapsed the window closes, a sample is recorded, and a
// new window opens at the closing timestamp.
func (t *FPSTracker) OnFrameTick(timestampSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasFirstTick {
		t.windowStart = timestampSeconds
		t.frameCount = 1
		t.hasFirstTick = true
		return
	}

	t.frameCount++
	elapsed := timestampSeconds - t.windowStart
	if elapsed < 1.0 {
		return
	}

	// Divide by the actual elapsed time rather than a fixed second so
	// a late closing tick doesn't inflate the rate.
	t.recordSample(int(math.Round(float64(t.frameCount) / elapsed)))

	t.windowStart = timestampSeconds
	t.frameCount = 0
}

// recordSample appends a closed-window rate to the ring buffer and
// updates the aggregates. Caller holds t.mu.
func (t *FPSTracker) recordSample(fps int) {
	t.samples[t.writeIndex] = fps
	t.writeIndex = (t.writeIndex + 1) % len(t.samples)
	if t.count < len(t.samples) {
		t.count++
	}

	t.currentFPS.Store(int64(fps))

	if fps < t.minFPS {
		t.minFPS = fps
	}
	if fps > t.maxFPS {
		t.maxFPS = fps
	}

	dropped := t.targetFPS - fps
	if dropped < 0 {
		dropped = 0
	}
	t.droppedFrames += int64(dropped)
	if dropped >= stutterThreshold {
		t.stutterCount++
	}
}

// CurrentFPS returns the most recent completed-window rate, or 0 when
// no window has closed yet. Cheap to poll at high frequency.
func (t *FPSTracker) CurrentFPS() int {
	return int(t.currentFPS.Load())
}

// Samples returns the recorded history ordered oldest to newest.
func (t *FPSTracker) Samples() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]int, 0, t.count)
	if t.count < len(t.samples) {
		// Not wrapped yet, samples are in order from index zero.
		result = append(result, t.samples[:t.count]...)
		return result
	}
	// Wrapped: writeIndex points at the oldest entry.
	for i := 0; i < len(t.samples); i++ {
		result = append(result, t.samples[(t.writeIndex+i)%len(t.samples)])
	}
	return result
}

// MinFPS returns the lowest rate recorded since the last Reset, or 0
// when no samples exist yet.
func (t *FPSTracker) MinFPS() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.minFPS
}

// MaxFPS returns the highest rate recorded since the last Reset.
func (t *FPSTracker) MaxFPS() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxFPS
}

// DroppedFrames returns the cumulative estimated dropped frames,
// summed as max(0, target-rate) over every closed window since Reset.
func (t *FPSTracker) DroppedFrames() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.droppedFrames
}

// StutterCount returns how many closed windows dropped
// stutterThreshold or more frames since the last Reset.
func (t *FPSTracker) StutterCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stutterCount
}

// SetTargetFPS sets the target rate used for dropped-frame
// estimation. Affects only windows that close after the call.
func (t *FPSTracker) SetTargetFPS(target int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targetFPS = target
}

// Reset clears the history, the open window, and every aggregate,
// returning the tracker to its freshly constructed state.
func (t *FPSTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.samples {
		t.samples[i] = 0
	}
	t.writeIndex = 0
	t.count = 0
	t.windowStart = 0
	t.frameCount = 0
	t.hasFirstTick = false
	t.currentFPS.Store(0)
	t.minFPS = math.MaxInt32
	t.maxFPS = 0
	t.droppedFrames = 0
	t.stutterCount = 0
}
