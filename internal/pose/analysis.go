package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// JointAngle returns the angle in radians at joint between the directions
// towards a and b. A zero-length direction yields 0.
func JointAngle(a, joint, b r3.Vec) float64 {
	u, v := r3.Sub(a, joint), r3.Sub(b, joint)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if !(nu > 0) || !(nv > 0) {
		return 0
	}
	c := r3.Dot(u, v) / (nu * nv)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// AngleJoint names a three-point angle measured at Joint.
type AngleJoint struct {
	Name        string
	A, Joint, B int
}

// LimbAngles are the elbow and knee angles reported for every frame.
var LimbAngles = []AngleJoint{
	{Name: "left_elbow", A: LeftShoulder, Joint: LeftElbow, B: LeftWrist},
	{Name: "right_elbow", A: RightShoulder, Joint: RightElbow, B: RightWrist},
	{Name: "left_knee", A: LeftHip, Joint: LeftKnee, B: LeftAnkle},
	{Name: "right_knee", A: RightHip, Joint: RightKnee, B: RightAnkle},
}

// Angles measures LimbAngles on s. An angle is left out when any of its
// three points is missing or below minVisibility.
func Angles(s LandmarkSet, minVisibility float64) map[string]float64 {
	out := make(map[string]float64, len(LimbAngles))
	for _, j := range LimbAngles {
		a, m, b := s.At(j.A), s.At(j.Joint), s.At(j.B)
		if a == nil || m == nil || b == nil {
			continue
		}
		if a.Vis() < minVisibility || m.Vis() < minVisibility || b.Vis() < minVisibility {
			continue
		}
		out[j.Name] = JointAngle(a.Vec(), m.Vec(), b.Vec())
	}
	return out
}

// Stable reports whether more than ratio of the physical landmarks present
// in both sets moved less than distance between prev and cur. Nothing to
// compare means not stable.
func Stable(prev, cur LandmarkSet, distance, ratio float64) bool {
	n := min(len(prev), len(cur), NumLandmarks)
	var still, total int
	for i := 0; i < n; i++ {
		p, c := prev[i], cur[i]
		if p == nil || c == nil {
			continue
		}
		total++
		if r3.Norm(r3.Sub(c.Vec(), p.Vec())) < distance {
			still++
		}
	}
	if total == 0 {
		return false
	}
	return float64(still)/float64(total) > ratio
}
