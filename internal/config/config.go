// Package config defines the natya process configuration and its loader.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/natya/internal/retarget"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir holds the rig catalog database.
	DataDir string `koanf:"data_dir"`

	// StaticDir serves the web viewer when set.
	StaticDir string `koanf:"static_dir"`

	// Tray enables the system tray menu.
	Tray bool `koanf:"tray"`

	// Capture
	CameraID int  `koanf:"camera_id"`
	FPS      int  `koanf:"fps"`
	Capture  bool `koanf:"capture"`
	Mirror   bool `koanf:"mirror"`

	// MotionThreshold is the percentage of changed pixels that sends a
	// frame to the estimator. Zero estimates every frame.
	MotionThreshold float64 `koanf:"motion_threshold"`

	// WorldLandmarks requests metric world coordinates from the estimator.
	WorldLandmarks bool `koanf:"world_landmarks"`

	// EstimatorScript and PythonPath locate the MediaPipe pose helper.
	// Empty values are searched for at startup.
	EstimatorScript string `koanf:"estimator_script"`
	PythonPath      string `koanf:"python_path"`

	// BroadcastIntervalMS paces pose snapshots to WebSocket clients.
	BroadcastIntervalMS int `koanf:"broadcast_interval_ms"`

	// Retargeting parameters.
	Scale                float64 `koanf:"scale"`
	DepthScale           float64 `koanf:"depth_scale"`
	HipScale             float64 `koanf:"hip_scale"`
	NeckOffset           float64 `koanf:"neck_offset"`
	VirtualMinConfidence float64 `koanf:"virtual_min_confidence"`
	ConfidenceGate       float64 `koanf:"confidence_gate"`
	ReliableVisibility   float64 `koanf:"reliable_visibility"`
	ReliableRatio        float64 `koanf:"reliable_ratio"`
	HistorySize          int     `koanf:"history_size"`
	ApplyBlend           float64 `koanf:"apply_blend"`
	PositionBlend        float64 `koanf:"position_blend"`
	StableDistance       float64 `koanf:"stable_distance"`
	StableRatio          float64 `koanf:"stable_ratio"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	rc := retarget.DefaultConfig()
	c := &Config{
		LogLevel:             "info",
		Addr:                 ":8080",
		DataDir:              defaultDataDir(),
		Tray:                 false,
		CameraID:             0,
		FPS:                  30,
		Capture:              true,
		Mirror:               true,
		MotionThreshold:      0.5,
		BroadcastIntervalMS:  66,
		Scale:                rc.Scale,
		DepthScale:           rc.DepthScale,
		HipScale:             rc.HipScale,
		NeckOffset:           rc.NeckOffset,
		VirtualMinConfidence: rc.VirtualMinConfidence,
		ConfidenceGate:       rc.ConfidenceGate,
		ReliableVisibility:   rc.ReliableVisibility,
		ReliableRatio:        rc.ReliableRatio,
		HistorySize:          rc.HistorySize,
		ApplyBlend:           rc.ApplyBlend,
		PositionBlend:        rc.PositionBlend,
		StableDistance:       rc.StableDistance,
		StableRatio:          rc.StableRatio,
	}
	return c
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".natya"
	}
	return filepath.Join(home, ".natya")
}

// Retarget projects the configuration onto the engine parameters.
func (c *Config) Retarget() retarget.Config {
	return retarget.Config{
		Scale:                c.Scale,
		DepthScale:           c.DepthScale,
		HipScale:             c.HipScale,
		NeckOffset:           c.NeckOffset,
		VirtualMinConfidence: c.VirtualMinConfidence,
		ConfidenceGate:       c.ConfidenceGate,
		ReliableVisibility:   c.ReliableVisibility,
		ReliableRatio:        c.ReliableRatio,
		HistorySize:          c.HistorySize,
		ApplyBlend:           c.ApplyBlend,
		PositionBlend:        c.PositionBlend,
		StableDistance:       c.StableDistance,
		StableRatio:          c.StableRatio,
	}
}

// BroadcastInterval returns BroadcastIntervalMS as a duration.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMS) * time.Millisecond
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidConfig, c.FPS)
	case c.MotionThreshold < 0 || c.MotionThreshold > 100:
		return fmt.Errorf("%w: motion_threshold must be in [0,100]", ErrInvalidConfig)
	case c.BroadcastIntervalMS <= 0:
		return fmt.Errorf("%w: broadcast_interval_ms must be positive", ErrInvalidConfig)
	case c.Scale <= 0:
		return fmt.Errorf("%w: scale must be positive", ErrInvalidConfig)
	case c.HipScale <= 0:
		return fmt.Errorf("%w: hip_scale must be positive", ErrInvalidConfig)
	case !unit(c.ConfidenceGate):
		return fmt.Errorf("%w: confidence_gate must be in [0,1]", ErrInvalidConfig)
	case !unit(c.VirtualMinConfidence):
		return fmt.Errorf("%w: virtual_min_confidence must be in [0,1]", ErrInvalidConfig)
	case !unit(c.ReliableVisibility) || !unit(c.ReliableRatio):
		return fmt.Errorf("%w: reliable_visibility and reliable_ratio must be in [0,1]", ErrInvalidConfig)
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history_size must be at least 1", ErrInvalidConfig)
	case c.ApplyBlend <= 0 || c.ApplyBlend > 1:
		return fmt.Errorf("%w: apply_blend must be in (0,1]", ErrInvalidConfig)
	case c.PositionBlend <= 0 || c.PositionBlend > 1:
		return fmt.Errorf("%w: position_blend must be in (0,1]", ErrInvalidConfig)
	case c.StableDistance <= 0:
		return fmt.Errorf("%w: stable_distance must be positive", ErrInvalidConfig)
	case c.StableRatio <= 0 || c.StableRatio > 1:
		return fmt.Errorf("%w: stable_ratio must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
