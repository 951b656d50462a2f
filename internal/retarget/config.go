package retarget

import "github.com/ayusman/natya/internal/pose"

// Config holds the retargeting parameters.
type Config struct {
	// Normalization
	Scale      float64 // image-space to target-space scale
	DepthScale float64 // extra factor on depth relative to Scale
	HipScale   float64 // scale for hip-centered proxy positions

	// Virtual joints
	NeckOffset           float64 // neck height above shoulders, fraction of shoulder width
	VirtualMinConfidence float64 // minimum input visibility for a virtual joint

	// Gating
	ConfidenceGate     float64 // per-endpoint visibility needed to update a bone
	ReliableVisibility float64 // key joint visibility for the frame floor
	ReliableRatio      float64 // fraction of key joints that must pass; 0 disables

	// Smoothing
	HistorySize   int     // rotations kept per bone
	ApplyBlend    float64 // slerp factor from the written rotation to the smoothed one
	PositionBlend float64 // lerp factor from the written position to the new one

	// Stability
	StableDistance float64 // per-frame movement below which a joint counts as still
	StableRatio    float64 // share of still joints above which the pose is stable
}

// Defaults not owned by the pose package.
const (
	DefaultPositionBlend  = 0.15
	DefaultStableDistance = 0.1
	DefaultStableRatio    = 0.8
)

// DefaultConfig returns the default retargeting parameters.
func DefaultConfig() Config {
	return Config{
		Scale:                pose.DefaultScale,
		DepthScale:           pose.DefaultDepthScale,
		HipScale:             pose.DefaultHipScale,
		NeckOffset:           pose.DefaultNeckOffset,
		VirtualMinConfidence: pose.DefaultMinConfidence,
		ConfidenceGate:       0.5,
		ReliableVisibility:   0.5,
		ReliableRatio:        0.7,
		HistorySize:          DefaultHistorySize,
		ApplyBlend:           1,
		PositionBlend:        DefaultPositionBlend,
		StableDistance:       DefaultStableDistance,
		StableRatio:          DefaultStableRatio,
	}
}

// sanitize clamps out-of-range values so the engine never stalls.
func (c Config) sanitize() Config {
	if c.HistorySize < 1 {
		c.HistorySize = 1
	}
	if c.ApplyBlend <= 0 || c.ApplyBlend > 1 {
		c.ApplyBlend = 1
	}
	if c.PositionBlend <= 0 || c.PositionBlend > 1 {
		c.PositionBlend = DefaultPositionBlend
	}
	if c.StableDistance <= 0 {
		c.StableDistance = DefaultStableDistance
	}
	if c.StableRatio <= 0 || c.StableRatio > 1 {
		c.StableRatio = DefaultStableRatio
	}
	if c.Scale == 0 {
		c.Scale = pose.DefaultScale
	}
	if c.HipScale == 0 {
		c.HipScale = pose.DefaultHipScale
	}
	return c
}

func (c Config) normalizer(world bool) pose.Normalizer {
	n := pose.DefaultNormalizer()
	n.Scale = c.Scale
	n.DepthScale = c.DepthScale
	if world {
		n.Center.X, n.Center.Y = 0, 0
	}
	return n
}

func (c Config) synthesizer() pose.Synthesizer {
	return pose.Synthesizer{
		NeckOffset:    c.NeckOffset,
		MinConfidence: c.VirtualMinConfidence,
	}
}
