package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate constants.
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21).
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection.
	DiffThreshold = 25
	// DefaultMaxSkip bounds how many consecutive still frames may skip
	// estimation before one is forced through.
	DefaultMaxSkip = 15
)

// MotionGate decides whether a frame differs enough from the last admitted
// frame to be worth running through the pose estimator. A subject holding
// still produces near-identical frames whose estimates would only feed
// jitter into the smoother.
type MotionGate struct {
	threshold   float64
	maxSkip     int
	skipped     int
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a gate. threshold is the percentage of pixels that
// must change; a threshold <= 0 admits every frame. maxSkip <= 0 uses
// DefaultMaxSkip.
func NewMotionGate(threshold float64, maxSkip int) *MotionGate {
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &MotionGate{
		threshold: threshold,
		maxSkip:   maxSkip,
		prevGray:  gocv.NewMat(),
	}
}

// Admit reports whether frame should be estimated, along with the
// percentage of pixels that changed. The first frame is always admitted,
// as is any frame after maxSkip consecutive rejections.
func (m *MotionGate) Admit(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}
	if m.threshold <= 0 {
		return true, 100
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		m.skipped = 0
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changePercent := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	if changePercent <= m.threshold && m.skipped < m.maxSkip {
		m.skipped++
		return false, changePercent
	}

	// The baseline only moves on admitted frames so slow drift accumulates.
	blurred.CopyTo(&m.prevGray)
	m.skipped = 0
	return true, changePercent
}

// Reset drops the baseline; the next frame is admitted unconditionally.
func (m *MotionGate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the gate.
func (m *MotionGate) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionGate) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.skipped = 0
}

// SetThreshold sets the change percentage. Negative values are ignored.
func (m *MotionGate) SetThreshold(threshold float64) {
	if threshold < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
