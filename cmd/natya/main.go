package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ayusman/natya/internal/app"
	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/config"
	"github.com/ayusman/natya/internal/detector"
	"github.com/ayusman/natya/internal/retarget"
	"github.com/ayusman/natya/internal/server"
	"github.com/ayusman/natya/internal/store"
	"github.com/ayusman/natya/internal/tray"
	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout is left unset so WebSocket
// streams are not cut off.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	statusInterval    = time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, stop, cfg, log); err != nil {
		log.Error(ctx, "natya exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, log logger.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewManager(metrics.WithPrometheusRegistry(registry))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "natya.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine := retarget.New(
		retarget.WithConfig(cfg.Retarget()),
		retarget.WithLogger(log),
		retarget.WithMetrics(m),
	)

	appCfg := app.Config{
		Store:           st,
		Engine:          engine,
		Logger:          log,
		Metrics:         m,
		FPS:             cfg.FPS,
		MotionThreshold: cfg.MotionThreshold,
	}
	if cfg.Capture {
		est, err := newEstimator(cfg)
		if err != nil {
			log.Warn(ctx, "pose estimator unavailable; accepting frames over HTTP only", logger.Error(err))
		} else {
			appCfg.Estimator = est
			appCfg.Source = capture.NewCamera(capture.Options{
				DeviceID: cfg.CameraID,
				FPS:      cfg.FPS,
				Mirror:   cfg.Mirror,
			})
		}
	}

	a := app.New(appCfg)
	if err := a.RestoreActive(ctx); err != nil {
		log.Warn(ctx, "restore active rig", logger.Error(err))
	}
	if appCfg.Source != nil {
		if err := a.Start(ctx); err != nil {
			log.Warn(ctx, "camera unavailable; accepting frames over HTTP only", logger.Error(err))
		}
	}
	defer a.Stop(context.Background())

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}

	srv := server.New(server.Config{
		StaticDir:         staticDir,
		Store:             st,
		App:               a,
		Metrics:           m,
		Logger:            log,
		BroadcastInterval: cfg.BroadcastInterval(),
	})
	go srv.Run(ctx)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("static_dir", staticDir))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	if cfg.Tray {
		runTray(ctx, stop, cfg, a)
	} else {
		<-ctx.Done()
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func newEstimator(cfg *config.Config) (detector.Estimator, error) {
	dc := detector.DefaultConfig()
	dc.World = cfg.WorldLandmarks
	dc.ScriptPath = cfg.EstimatorScript
	dc.PythonPath = cfg.PythonPath
	return detector.NewMediaPipeEstimator(dc)
}

// runTray blocks on the tray menu, which must own the main thread on
// macOS. It returns after Quit or when ctx is cancelled.
func runTray(ctx context.Context, stop context.CancelFunc, cfg *config.Config, a *app.App) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnReset(func() { a.Reset(ctx) })
	t.OnViewer(func() { openBrowser(viewerURL(cfg.Addr)) })
	t.OnQuit(stop)

	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-ticker.C:
				snap := a.Engine().Pose()
				if snap.State == retarget.Unbound {
					t.SetStatus("")
				} else {
					t.SetStatus(fmt.Sprintf("%s (%s)", snap.Rig, snap.State))
				}
			}
		}
	}()

	t.Run()
}

func viewerURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

// findWebDir searches for the viewer directory in common locations.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
