package pose

import "gonum.org/v1/gonum/spatial/r3"

// Default virtual joint parameters.
const (
	// DefaultNeckOffset is the neck height above the shoulder center as a
	// fraction of shoulder width.
	DefaultNeckOffset = 0.3
	// DefaultMinConfidence is the minimum input visibility for a virtual joint.
	DefaultMinConfidence = 0.5
)

// Synthesizer derives joints that have no direct landmark.
type Synthesizer struct {
	NeckOffset    float64
	MinConfidence float64
}

// DefaultSynthesizer returns a Synthesizer with the default parameters.
func DefaultSynthesizer() Synthesizer {
	return Synthesizer{
		NeckOffset:    DefaultNeckOffset,
		MinConfidence: DefaultMinConfidence,
	}
}

// Extend returns a NumExtended-long copy of s with the virtual joints
// appended. A virtual joint is left nil when any of its inputs is missing or
// below MinConfidence; callers must not treat that as a zero position.
// The input set is expected to be normalized (+Y up).
func (v Synthesizer) Extend(s LandmarkSet) LandmarkSet {
	out := make(LandmarkSet, NumExtended)
	copy(out, s[:min(len(s), NumLandmarks)])

	out[ShoulderCenter] = v.midpoint(s.At(LeftShoulder), s.At(RightShoulder))
	out[HipCenter] = v.midpoint(s.At(LeftHip), s.At(RightHip))
	out[SpineRoot] = v.midpoint(out[ShoulderCenter], out[HipCenter])

	if sc := out[ShoulderCenter]; sc != nil {
		width := r3.Norm(r3.Sub(s[LeftShoulder].Vec(), s[RightShoulder].Vec()))
		neck := r3.Add(sc.Vec(), r3.Vec{Y: width * v.NeckOffset})
		out[Neck] = sc.withPos(neck)
	}

	return out
}

// midpoint returns the midpoint of a and b with the lower of their
// visibilities, or nil when either is unusable.
func (v Synthesizer) midpoint(a, b *Landmark) *Landmark {
	if !v.usable(a) || !v.usable(b) {
		return nil
	}
	p := r3.Scale(0.5, r3.Add(a.Vec(), b.Vec()))
	return NewLandmark(p.X, p.Y, p.Z, min(a.Vis(), b.Vis()))
}

func (v Synthesizer) usable(l *Landmark) bool {
	return l != nil && l.Vis() >= v.MinConfidence
}
