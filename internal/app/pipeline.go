package app

import (
	"context"
	"time"

	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

// runPipeline reads the newest camera frame on every tick, estimates the
// pose and feeds it to the engine. Frames are never queued; a slow
// estimator simply lowers the effective rate.
func (a *App) runPipeline(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			a.step(ctx)
		}
	}
}

// step handles one captured frame.
func (a *App) step(ctx context.Context) {
	mat, err := a.config.Source.ReadFrame()
	if err != nil {
		a.diag.Warn(ctx, "read frame", logger.Error(err))
		return
	}
	defer mat.Close()

	if ok, _ := a.gate.Admit(mat); !ok {
		return
	}

	start := time.Now()
	frame, err := a.config.Estimator.Estimate(mat)
	a.metrics.EstimateLatency(time.Since(start))
	if err != nil {
		a.metrics.FrameDropped(metrics.ReasonEstimator)
		a.diag.Error(ctx, "estimate pose", logger.Error(err))
		return
	}
	if frame == nil {
		return
	}

	res, err := a.Submit(ctx, *frame)
	if err != nil {
		return
	}
	if !res.Processed() {
		a.diag.Debug(ctx, "frame dropped", logger.String("reason", string(res.Dropped)))
	}
}
