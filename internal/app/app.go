// Package app wires capture, pose estimation, the rig catalog and the
// retargeting engine into one running pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/detector"
	"github.com/ayusman/natya/internal/pose"
	"github.com/ayusman/natya/internal/retarget"
	"github.com/ayusman/natya/internal/store"
	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

// Pipeline defaults.
const (
	DefaultFPS = 30
	// DefaultMotionThreshold is the percentage of changed pixels that
	// forces a frame through the estimator.
	DefaultMotionThreshold = 0.5
)

var (
	// ErrNoStore is returned by catalog operations when the app has no store.
	ErrNoStore = errors.New("no rig store configured")
	// ErrNoSource is returned by Start when there is nothing to capture from.
	ErrNoSource = errors.New("no capture source configured")
)

// Config holds the collaborators of an App. Engine is required; the rest
// may be nil, in which case the matching features are disabled.
type Config struct {
	Store           *store.Store
	Source          capture.Source
	Estimator       detector.Estimator
	Engine          *retarget.Engine
	Logger          logger.Logger
	Metrics         *metrics.Manager
	FPS             int
	MotionThreshold float64
}

// App runs the capture pipeline and exposes rig binding operations.
type App struct {
	config  Config
	engine  *retarget.Engine
	gate    *capture.MotionGate
	log     logger.Logger
	diag    logger.Logger
	metrics *metrics.Manager

	mu      sync.RWMutex
	enabled bool
	cancel  context.CancelFunc
	done    chan struct{}
	active  string
}

// New creates an App. It panics if config.Engine is nil.
func New(config Config) *App {
	if config.Engine == nil {
		panic("app: nil engine")
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	if config.MotionThreshold < 0 {
		config.MotionThreshold = DefaultMotionThreshold
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("app")

	return &App{
		config:  config,
		engine:  config.Engine,
		gate:    capture.NewMotionGate(config.MotionThreshold, 0),
		log:     log,
		diag:    logger.Limited(log, 5*time.Second, 1),
		metrics: config.Metrics,
		enabled: true,
	}
}

// Engine returns the retargeting engine.
func (a *App) Engine() *retarget.Engine {
	return a.engine
}

// Store returns the rig catalog, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// SetEnabled pauses or resumes processing of captured frames.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether captured frames are processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cancel != nil
}

// ActiveRig returns the ID of the bound catalog rig, or "".
func (a *App) ActiveRig() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// Start opens the capture source and begins the pipeline. Calling Start on
// a running App is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.config.Source == nil || a.config.Estimator == nil {
		return ErrNoSource
	}

	if err := a.config.Source.Open(); err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}
	a.config.Source.SetFPS(a.config.FPS)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.runPipeline(runCtx, a.done)

	a.log.Info(ctx, "capture pipeline started", logger.Int("fps", a.config.FPS))
	return nil
}

// Stop halts the pipeline and releases the source and estimator.
func (a *App) Stop(ctx context.Context) {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if a.config.Source != nil {
		if err := a.config.Source.Close(); err != nil {
			a.log.Warn(ctx, "close capture source", logger.Error(err))
		}
	}
	if a.config.Estimator != nil {
		if err := a.config.Estimator.Close(); err != nil {
			a.log.Warn(ctx, "close estimator", logger.Error(err))
		}
	}
	a.gate.Close()

	if cancel != nil {
		a.log.Info(ctx, "capture pipeline stopped")
	}
}

// Submit feeds an externally estimated frame to the engine.
func (a *App) Submit(ctx context.Context, frame pose.Frame) (retarget.Result, error) {
	return a.engine.Process(ctx, frame)
}

// BindRig loads a rig from the catalog, binds it and remembers it as the
// active rig.
func (a *App) BindRig(ctx context.Context, id string) (retarget.Binding, error) {
	if a.config.Store == nil {
		return retarget.Binding{}, ErrNoStore
	}

	rig, err := a.config.Store.Rigs().GetByID(id)
	if err != nil {
		return retarget.Binding{}, err
	}

	b := a.engine.Bind(ctx, EngineRig(rig))

	if err := a.config.Store.Settings().Set(store.SettingActiveRig, rig.ID); err != nil {
		a.log.Warn(ctx, "persist active rig", logger.String("rig", rig.ID), logger.Error(err))
	}

	a.mu.Lock()
	a.active = rig.ID
	a.mu.Unlock()

	a.gate.Reset()
	return b, nil
}

// Unbind detaches the current rig and forgets the active rig setting.
func (a *App) Unbind(ctx context.Context) error {
	a.engine.Unbind(ctx)

	a.mu.Lock()
	a.active = ""
	a.mu.Unlock()

	if a.config.Store == nil {
		return nil
	}
	return a.config.Store.Settings().Delete(store.SettingActiveRig)
}

// Reset returns the bound rig to its rest pose.
func (a *App) Reset(ctx context.Context) {
	a.engine.Reset(ctx)
	a.gate.Reset()
}

// RestoreActive binds the rig remembered from a previous run, if any.
// A stale setting pointing at a deleted rig is cleared.
func (a *App) RestoreActive(ctx context.Context) error {
	if a.config.Store == nil {
		return nil
	}

	id, err := a.config.Store.Settings().Get(store.SettingActiveRig)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	b, err := a.BindRig(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		a.log.Warn(ctx, "active rig no longer exists", logger.String("rig", id))
		return a.config.Store.Settings().Delete(store.SettingActiveRig)
	}
	if err != nil {
		return err
	}

	a.log.Info(ctx, "restored active rig",
		logger.String("rig", b.Rig),
		logger.String("state", b.State.String()),
	)
	return nil
}

// EngineRig converts a catalog rig to the engine's bind input. Part
// handles are the part names.
func EngineRig(r *store.Rig) retarget.Rig {
	out := retarget.Rig{
		Name:     r.Name,
		Skeleton: r.Skeleton,
		Parts:    make(map[string]retarget.Handle, len(r.Parts)),
	}
	for _, p := range r.Parts {
		out.Parts[p.Name] = p.Name
		if p.Rest != nil {
			if out.Rest == nil {
				out.Rest = make(map[string]r3.Vec)
			}
			out.Rest[p.Name] = r3.Vec{X: p.Rest[0], Y: p.Rest[1], Z: p.Rest[2]}
		}
	}
	return out
}
