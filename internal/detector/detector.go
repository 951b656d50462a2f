// Package detector produces body landmark frames from camera images.
package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/natya/internal/pose"
)

// ErrScriptNotFound is returned when the pose estimation helper script
// cannot be located.
var ErrScriptNotFound = errors.New("pose_service.py not found")

// Estimator defines the interface for body pose estimation implementations.
type Estimator interface {
	// Estimate analyzes a video frame and returns the detected body landmarks.
	// Returns a nil frame if no person is detected.
	Estimate(frame *gocv.Mat) (*pose.Frame, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for pose estimation.
type Config struct {
	// ModelComplexity selects the MediaPipe Pose model (0, 1 or 2).
	ModelComplexity int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// World requests metric, hip-origin world landmarks instead of
	// normalized image landmarks.
	World bool

	// ScriptPath and PythonPath override the helper lookup.
	ScriptPath string
	PythonPath string

	// IdleTimeout stops the helper process after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelComplexity: 1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
