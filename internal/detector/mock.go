package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/natya/internal/pose"
)

// MockEstimator is a test implementation of the Estimator interface.
// It allows tests to control the estimation results.
type MockEstimator struct {
	mu    sync.Mutex
	frame *pose.Frame
	err   error
	calls int
}

// NewMockEstimator creates a new MockEstimator instance.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{}
}

// SetLandmarks sets the landmarks returned by Estimate. Nil means no person.
func (m *MockEstimator) SetLandmarks(set pose.LandmarkSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set == nil {
		m.frame = nil
		return
	}
	m.frame = &pose.Frame{Landmarks: set}
}

// SetError sets the error that will be returned by Estimate.
func (m *MockEstimator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Estimate was called.
func (m *MockEstimator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Estimate returns a copy of the pre-configured frame or error.
func (m *MockEstimator) Estimate(frame *gocv.Mat) (*pose.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.frame == nil {
		return nil, nil
	}
	out := *m.frame
	out.Landmarks = m.frame.Landmarks.Clone()
	return &out, nil
}

// Close is a no-op for the mock estimator.
func (m *MockEstimator) Close() error {
	return nil
}

// standingBody returns image-space landmarks for a subject facing the camera
// with the head, torso and legs in a neutral standing position. Arms are set
// by the callers.
func standingBody() pose.LandmarkSet {
	s := make(pose.LandmarkSet, pose.NumLandmarks)
	set := func(i int, x, y, z float64) {
		s[i] = pose.NewLandmark(x, y, z, 0.99)
	}

	// Face
	set(pose.Nose, 0.50, 0.20, -0.10)
	set(pose.LeftEyeInner, 0.49, 0.18, -0.09)
	set(pose.LeftEye, 0.48, 0.18, -0.09)
	set(pose.LeftEyeOuter, 0.47, 0.18, -0.09)
	set(pose.RightEyeInner, 0.51, 0.18, -0.09)
	set(pose.RightEye, 0.52, 0.18, -0.09)
	set(pose.RightEyeOuter, 0.53, 0.18, -0.09)
	set(pose.LeftEar, 0.46, 0.19, -0.02)
	set(pose.RightEar, 0.54, 0.19, -0.02)
	set(pose.MouthLeft, 0.49, 0.23, -0.08)
	set(pose.MouthRight, 0.51, 0.23, -0.08)

	// Torso
	set(pose.LeftShoulder, 0.42, 0.32, 0)
	set(pose.RightShoulder, 0.58, 0.32, 0)
	set(pose.LeftHip, 0.45, 0.58, 0)
	set(pose.RightHip, 0.55, 0.58, 0)

	// Legs
	set(pose.LeftKnee, 0.45, 0.75, 0)
	set(pose.RightKnee, 0.55, 0.75, 0)
	set(pose.LeftAnkle, 0.45, 0.92, 0)
	set(pose.RightAnkle, 0.55, 0.92, 0)
	set(pose.LeftHeel, 0.45, 0.94, 0.03)
	set(pose.RightHeel, 0.55, 0.94, 0.03)
	set(pose.LeftFootIndex, 0.45, 0.95, -0.06)
	set(pose.RightFootIndex, 0.55, 0.95, -0.06)

	return s
}

// TPoseLandmarks returns a preset landmark set with both arms extended
// horizontally.
func TPoseLandmarks() pose.LandmarkSet {
	s := standingBody()
	set := func(i int, x, y float64) {
		s[i] = pose.NewLandmark(x, y, 0, 0.99)
	}

	set(pose.LeftElbow, 0.32, 0.32)
	set(pose.LeftWrist, 0.22, 0.32)
	set(pose.LeftPinky, 0.19, 0.33)
	set(pose.LeftIndex, 0.19, 0.32)
	set(pose.LeftThumb, 0.20, 0.31)

	set(pose.RightElbow, 0.68, 0.32)
	set(pose.RightWrist, 0.78, 0.32)
	set(pose.RightPinky, 0.81, 0.33)
	set(pose.RightIndex, 0.81, 0.32)
	set(pose.RightThumb, 0.80, 0.31)

	return s
}

// ArmsDownLandmarks returns a preset landmark set with both arms hanging
// straight down.
func ArmsDownLandmarks() pose.LandmarkSet {
	s := standingBody()
	set := func(i int, x, y float64) {
		s[i] = pose.NewLandmark(x, y, 0, 0.99)
	}

	set(pose.LeftElbow, 0.42, 0.45)
	set(pose.LeftWrist, 0.42, 0.57)
	set(pose.LeftPinky, 0.42, 0.60)
	set(pose.LeftIndex, 0.42, 0.61)
	set(pose.LeftThumb, 0.43, 0.59)

	set(pose.RightElbow, 0.58, 0.45)
	set(pose.RightWrist, 0.58, 0.57)
	set(pose.RightPinky, 0.58, 0.60)
	set(pose.RightIndex, 0.58, 0.61)
	set(pose.RightThumb, 0.57, 0.59)

	return s
}
