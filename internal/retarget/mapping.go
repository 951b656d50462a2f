package retarget

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/pose"
)

// BoneMapping ties a canonical bone role to the landmarks that define its
// direction. Parent and Child index the extended landmark table, so either
// may be a virtual joint. Rest is the bone direction at rest; the zero value
// means Up.
type BoneMapping struct {
	Role       string
	Parent     int
	Child      int
	Alternates []string
	Rest       r3.Vec
}

// RestDirection returns Rest, or Up when unset.
func (m BoneMapping) RestDirection() r3.Vec {
	if r3.Norm(m.Rest) < degenerate {
		return Up
	}
	return m.Rest
}

// DefaultMappings returns the mapping table for humanoid rigs that follow
// Mixamo-style or lower-case underscore naming.
func DefaultMappings() []BoneMapping {
	return []BoneMapping{
		{Role: "spine", Parent: pose.HipCenter, Child: pose.ShoulderCenter,
			Alternates: []string{"Spine", "spine1", "Spine1"}},
		{Role: "spine1", Parent: pose.ShoulderCenter, Child: pose.Neck,
			Alternates: []string{"Spine1", "spine2", "Spine2"}},
		{Role: "neck", Parent: pose.Neck, Child: pose.Nose,
			Alternates: []string{"Neck", "neck1", "Head"}},

		{Role: "left_shoulder", Parent: pose.LeftShoulder, Child: pose.LeftElbow,
			Alternates: []string{"LeftShoulder", "L_Shoulder", "leftShoulder"}},
		{Role: "left_arm", Parent: pose.LeftElbow, Child: pose.LeftWrist,
			Alternates: []string{"LeftArm", "L_Arm", "leftArm", "LeftForeArm"}},
		{Role: "left_forearm", Parent: pose.LeftWrist, Child: pose.LeftIndex,
			Alternates: []string{"LeftForeArm", "L_ForeArm", "leftForeArm"}},
		{Role: "right_shoulder", Parent: pose.RightShoulder, Child: pose.RightElbow,
			Alternates: []string{"RightShoulder", "R_Shoulder", "rightShoulder"}},
		{Role: "right_arm", Parent: pose.RightElbow, Child: pose.RightWrist,
			Alternates: []string{"RightArm", "R_Arm", "rightArm", "RightForeArm"}},
		{Role: "right_forearm", Parent: pose.RightWrist, Child: pose.RightIndex,
			Alternates: []string{"RightForeArm", "R_ForeArm", "rightForeArm"}},

		{Role: "left_thigh", Parent: pose.LeftHip, Child: pose.LeftKnee,
			Alternates: []string{"LeftThigh", "L_Thigh", "leftThigh", "LeftUpLeg"}},
		{Role: "left_shin", Parent: pose.LeftKnee, Child: pose.LeftAnkle,
			Alternates: []string{"LeftShin", "L_Shin", "leftShin", "LeftLeg"}},
		{Role: "left_foot", Parent: pose.LeftAnkle, Child: pose.LeftFootIndex,
			Alternates: []string{"LeftFoot", "L_Foot", "leftFoot"}},
		{Role: "right_thigh", Parent: pose.RightHip, Child: pose.RightKnee,
			Alternates: []string{"RightThigh", "R_Thigh", "rightThigh", "RightUpLeg"}},
		{Role: "right_shin", Parent: pose.RightKnee, Child: pose.RightAnkle,
			Alternates: []string{"RightShin", "R_Shin", "rightShin", "RightLeg"}},
		{Role: "right_foot", Parent: pose.RightAnkle, Child: pose.RightFootIndex,
			Alternates: []string{"RightFoot", "R_Foot", "rightFoot"}},
	}
}

// Connection is a pair of landmark indices drawn as a segment on proxy rigs.
type Connection [2]int

// ProxyConnections returns the landmark pairs drawn between proxy anchors.
func ProxyConnections() []Connection {
	return []Connection{
		// face
		{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8},
		{9, 10},
		// torso and arms
		{11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21},
		{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22},
		{11, 23}, {12, 24}, {23, 24},
		// legs
		{23, 25}, {25, 27}, {27, 29}, {29, 31},
		{24, 26}, {26, 28}, {28, 30}, {30, 32},
		// spine through virtual joints
		{pose.HipCenter, pose.SpineRoot}, {pose.SpineRoot, pose.ShoulderCenter},
		{pose.ShoulderCenter, pose.Neck}, {pose.Neck, pose.Nose},
	}
}

// ProxyAnchors returns the landmark indices that proxy rigs may expose as
// independent parts: every physical landmark plus the virtual joints.
func ProxyAnchors() []int {
	out := make([]int, pose.NumExtended)
	for i := range out {
		out[i] = i
	}
	return out
}

// anchorNames returns the canonical part name and alternates for a proxy
// anchor, e.g. "left_shoulder" with "joint_11" and "LeftShoulder".
func anchorNames(index int) (string, []string) {
	name := pose.Name(index)
	return name, []string{fmt.Sprintf("joint_%d", index), toPascal(name)}
}

func toPascal(snake string) string {
	parts := strings.Split(snake, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}
