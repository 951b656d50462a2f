package logger

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// limited drops records once its token bucket is empty. Fatal always passes.
type limited struct {
	next    Logger
	limiter *rate.Limiter
}

// Limited wraps l so that at most one record per interval (with a burst of
// burst) is emitted. Used for per-frame diagnostics that would otherwise
// flood the log at camera rate.
func Limited(l Logger, every time.Duration, burst int) Logger {
	if burst < 1 {
		burst = 1
	}
	return &limited{next: l, limiter: rate.NewLimiter(rate.Every(every), burst)}
}

func (l *limited) Named(name string) Logger {
	return &limited{next: l.next.Named(name), limiter: l.limiter}
}

func (l *limited) Info(ctx context.Context, msg string, fields ...Field) {
	if l.limiter.Allow() {
		l.next.Info(ctx, msg, fields...)
	}
}

func (l *limited) Error(ctx context.Context, msg string, fields ...Field) {
	if l.limiter.Allow() {
		l.next.Error(ctx, msg, fields...)
	}
}

func (l *limited) Debug(ctx context.Context, msg string, fields ...Field) {
	if l.limiter.Allow() {
		l.next.Debug(ctx, msg, fields...)
	}
}

func (l *limited) Warn(ctx context.Context, msg string, fields ...Field) {
	if l.limiter.Allow() {
		l.next.Warn(ctx, msg, fields...)
	}
}

func (l *limited) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.next.Fatal(ctx, msg, fields...)
}
