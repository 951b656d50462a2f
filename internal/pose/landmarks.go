// Package pose provides body landmark types, coordinate normalization and
// virtual joint synthesis for pose retargeting.
package pose

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Body landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Virtual joint indices. They extend the physical table and are recomputed
// every frame by the Synthesizer.
const (
	Neck           = 33
	SpineRoot      = 34
	HipCenter      = 35
	ShoulderCenter = 36
	NumExtended    = 37
)

var landmarkNames = [NumExtended]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
	"neck", "spine_root", "hip_center", "shoulder_center",
}

// Name returns the snake_case name of a landmark or virtual joint index.
func Name(index int) string {
	if index < 0 || index >= NumExtended {
		return fmt.Sprintf("landmark_%d", index)
	}
	return landmarkNames[index]
}

var (
	// ErrIncompleteFrame is returned when a landmark set is too short or has
	// a missing entry at a required index.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrInvalidLandmark is returned when a landmark has a non-finite or
	// out-of-range coordinate, or a visibility outside [0,1].
	ErrInvalidLandmark = errors.New("invalid landmark")
)

// MaxCoordinate bounds the magnitude of an accepted coordinate. Image
// landmarks sit near [0,1] and world landmarks are in metres.
const MaxCoordinate = 1e3

// Landmark is one observed body point. Visibility is optional; estimators
// that do not report it leave it nil.
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// NewLandmark creates a landmark with an explicit visibility.
func NewLandmark(x, y, z, visibility float64) *Landmark {
	v := visibility
	return &Landmark{X: x, Y: y, Z: z, Visibility: &v}
}

// Vec returns the landmark position as a vector.
func (l *Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// Vis returns the visibility, treating an absent value as fully visible.
func (l *Landmark) Vis() float64 {
	if l == nil {
		return 0
	}
	if l.Visibility == nil {
		return 1
	}
	return *l.Visibility
}

// Check reports ErrInvalidLandmark when a coordinate is non-finite or
// larger than MaxCoordinate in magnitude, or the visibility is outside [0,1].
func (l *Landmark) Check() error {
	for _, c := range [3]float64{l.X, l.Y, l.Z} {
		if !(math.Abs(c) <= MaxCoordinate) {
			return fmt.Errorf("%w: coordinate %g", ErrInvalidLandmark, c)
		}
	}
	if v := l.Visibility; v != nil && !(*v >= 0 && *v <= 1) {
		return fmt.Errorf("%w: visibility %g", ErrInvalidLandmark, *v)
	}
	return nil
}

// withPos returns a copy of l moved to p, keeping its visibility.
func (l *Landmark) withPos(p r3.Vec) *Landmark {
	out := &Landmark{X: p.X, Y: p.Y, Z: p.Z}
	if l.Visibility != nil {
		v := *l.Visibility
		out.Visibility = &v
	}
	return out
}

// LandmarkSet is an ordered landmark table indexed by the constants above.
// Entries may be nil when the estimator did not report a point.
type LandmarkSet []*Landmark

// Validate reports ErrIncompleteFrame when the set has fewer than
// NumLandmarks entries or a nil entry at any physical index, and
// ErrInvalidLandmark when a physical landmark fails Check.
func (s LandmarkSet) Validate() error {
	if len(s) < NumLandmarks {
		return fmt.Errorf("%w: %d of %d landmarks", ErrIncompleteFrame, len(s), NumLandmarks)
	}
	for i := 0; i < NumLandmarks; i++ {
		if s[i] == nil {
			return fmt.Errorf("%w: missing %s", ErrIncompleteFrame, Name(i))
		}
		if err := s[i].Check(); err != nil {
			return fmt.Errorf("%s: %w", Name(i), err)
		}
	}
	return nil
}

// At returns the landmark at index i, or nil when out of range or absent.
func (s LandmarkSet) At(i int) *Landmark {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// Clone returns a deep copy of the set.
func (s LandmarkSet) Clone() LandmarkSet {
	out := make(LandmarkSet, len(s))
	for i, l := range s {
		if l != nil {
			out[i] = l.withPos(l.Vec())
		}
	}
	return out
}

// Confidence returns the mean visibility of the physical landmarks.
// Missing visibility counts as fully visible; missing landmarks count as zero.
func Confidence(s LandmarkSet) float64 {
	if len(s) == 0 {
		return 0
	}
	n := min(len(s), NumLandmarks)
	var sum float64
	for i := 0; i < n; i++ {
		sum += s[i].Vis()
	}
	return sum / float64(n)
}

// keyJoints are the landmarks used by Reliable.
var keyJoints = []int{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
}

// Reliable reports whether at least ratio of the key body joints have a
// visibility strictly above minVisibility.
func Reliable(s LandmarkSet, minVisibility, ratio float64) bool {
	if len(s) == 0 {
		return false
	}
	var ok int
	for _, idx := range keyJoints {
		if l := s.At(idx); l != nil && l.Vis() > minVisibility {
			ok++
		}
	}
	return float64(ok) >= float64(len(keyJoints))*ratio
}

// Frame is the unit of work: one landmark set plus a monotonic timestamp.
// World marks landmarks that are already metric and hip-origin (MediaPipe
// world landmarks) rather than normalized image coordinates.
type Frame struct {
	Landmarks LandmarkSet   `json:"landmarks"`
	Timestamp time.Duration `json:"timestamp"`
	World     bool          `json:"world,omitempty"`
}
