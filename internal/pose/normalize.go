package pose

import "gonum.org/v1/gonum/spatial/r3"

// Default normalization parameters.
const (
	DefaultScale      = 4.0
	DefaultDepthScale = 0.5
	DefaultHipScale   = 2.0
)

// Normalizer maps estimator-native coordinates into target space:
// centered on Center, uniformly scaled, with the vertical axis flipped so
// that up is +Y and depth scaled by DepthScale.
type Normalizer struct {
	Scale      float64
	DepthScale float64
	Center     r3.Vec
}

// DefaultNormalizer returns a Normalizer for image-space landmarks in [0,1].
func DefaultNormalizer() Normalizer {
	return Normalizer{
		Scale:      DefaultScale,
		DepthScale: DefaultDepthScale,
		Center:     r3.Vec{X: 0.5, Y: 0.5},
	}
}

// Point maps a single estimator-space position.
func (n Normalizer) Point(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: (p.X - n.Center.X) * n.Scale,
		Y: -(p.Y - n.Center.Y) * n.Scale,
		Z: p.Z * n.Scale * n.DepthScale,
	}
}

// Apply returns a new set with every present landmark mapped by Point.
// The input is not modified.
func (n Normalizer) Apply(s LandmarkSet) LandmarkSet {
	out := make(LandmarkSet, len(s))
	for i, l := range s {
		if l == nil {
			continue
		}
		out[i] = l.withPos(n.Point(l.Vec()))
	}
	return out
}

// ApplyHipCentered recenters the set on the midpoint of the hips, flips the
// vertical axis and scales by factor, so the result does not depend on where
// the subject stands in the frame. When either hip is missing it falls back
// to Apply.
func (n Normalizer) ApplyHipCentered(s LandmarkSet, factor float64) LandmarkSet {
	lh, rh := s.At(LeftHip), s.At(RightHip)
	if lh == nil || rh == nil {
		return n.Apply(s)
	}

	mid := r3.Scale(0.5, r3.Add(lh.Vec(), rh.Vec()))
	out := make(LandmarkSet, len(s))
	for i, l := range s {
		if l == nil {
			continue
		}
		d := r3.Sub(l.Vec(), mid)
		out[i] = l.withPos(r3.Vec{
			X: d.X * factor,
			Y: -d.Y * factor,
			Z: d.Z * factor * n.DepthScale,
		})
	}
	return out
}
