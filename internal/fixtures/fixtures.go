// Package fixtures embeds recorded landmark frames for tests.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/natya/internal/pose"
)

//go:embed testdata/*.json
var posesFS embed.FS

// Fixture names.
const (
	TPose     = "t_pose.json"
	ArmsDown  = "arms_down.json"
	Occluded  = "occluded.json"
	RaiseArms = "raise_arms.json"
)

// FrameFile is the JSON layout of a recorded frame. It matches the body
// accepted by POST /api/frames.
type FrameFile struct {
	TimestampMS int64            `json:"timestamp_ms"`
	World       bool             `json:"world"`
	Landmarks   []*pose.Landmark `json:"landmarks"`
}

// Frame converts the file form to an engine frame.
func (f FrameFile) Frame() pose.Frame {
	return pose.Frame{
		Landmarks: pose.LandmarkSet(f.Landmarks),
		Timestamp: time.Duration(f.TimestampMS) * time.Millisecond,
		World:     f.World,
	}
}

// Raw returns the embedded bytes of a fixture.
func Raw(name string) ([]byte, error) {
	data, err := posesFS.ReadFile("testdata/" + name)
	if err != nil {
		return nil, fmt.Errorf("load pose %s: %w", name, err)
	}
	return data, nil
}

// LoadPose loads a single-frame fixture by name.
func LoadPose(name string) (pose.Frame, error) {
	data, err := Raw(name)
	if err != nil {
		return pose.Frame{}, err
	}

	var f FrameFile
	if err := json.Unmarshal(data, &f); err != nil {
		return pose.Frame{}, fmt.Errorf("decode pose %s: %w", name, err)
	}
	return f.Frame(), nil
}

// LoadSequence loads a multi-frame fixture in recording order.
func LoadSequence(name string) ([]pose.Frame, error) {
	data, err := Raw(name)
	if err != nil {
		return nil, err
	}

	var files []FrameFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}

	frames := make([]pose.Frame, len(files))
	for i, f := range files {
		frames[i] = f.Frame()
	}
	return frames, nil
}
