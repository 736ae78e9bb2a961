package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"espvision/config"
	"espvision/debuglog"
	"espvision/display"
	"espvision/metrics"
	"espvision/overlay"
	"espvision/selection"
	"espvision/telemetry"
	"espvision/tracking"
	"espvision/vision"

	"gocv.io/x/gocv"
)

const (
	perfReportInterval = 15 * time.Second // Performance reporting interval
	debugDir           = "/tmp/espvision"  // Per-track debug logs
)

var (
	// Command-line flags
	configPath    = flag.String("config", "", "Optional JSON configuration file, flags override its values")
	saveConfig    = flag.String("save-config", "", "Write the effective configuration to this path and exit")
	camera        = flag.Int("camera", 0, "Capture device index")
	telemetryAddr = flag.String("telemetry", telemetry.DefaultAddress, "TCP address of the telemetry consumer (ESP TcpInputStream)")
	windowName    = flag.String("window", "Window", "Display window name")
	pollMS        = flag.Int("poll", 30, "Display poll interval per frame in milliseconds")
	mirror        = flag.Bool("mirror", true, "Mirror frames around the vertical axis before tracking")
	histBins      = flag.Int("hist-bins", 16, "Hue histogram bucket count")
	satMin        = flag.Float64("sat-min", 30, "Minimum saturation for the tracking mask (0-255)")
	valMin        = flag.Float64("val-min", 10, "Minimum value for the tracking mask (0-255)")
	maxIter       = flag.Int("max-iter", 10, "CAMShift maximum iterations")
	epsilon       = flag.Float64("epsilon", 1, "CAMShift convergence epsilon")
	maxReadFails  = flag.Int("max-read-failures", 30, "Consecutive failed camera reads before exiting")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100), empty disables")
	listenAddr    = flag.String("listen", "", "Run as a telemetry consumer on this address and print received centroids")

	// Debug and overlay flags
	debugMode       = flag.Bool("debug", false, "Write per-track debug logs to "+debugDir)
	debugVerbose    = flag.Bool("debug-verbose", false, "Enable verbose debug output")
	statusOverlay   = flag.Bool("status-overlay", false, "Show status information overlay (time, FPS, mode) in lower-left corner")
	terminalOverlay = flag.Bool("terminal-overlay", false, "Show debug terminal overlay (recent messages) in upper-left corner")

	// Global debug logger instance
	globalDebugLogger *debuglog.Logger
)

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, trackID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.Msg(component, message, trackID...)
	} else {
		fmt.Printf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	}
}

// debugMsgVerbose only outputs if debug-verbose flag is enabled
func debugMsgVerbose(component, message string, trackID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.Verbose(component, message, trackID...)
	}
}

// loadConfig layers explicitly set flags over the optional config file
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", *configPath, err)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			cfg.Camera = *camera
		case "telemetry":
			cfg.TelemetryAddr = *telemetryAddr
		case "window":
			cfg.WindowName = *windowName
		case "poll":
			cfg.PollIntervalMS = *pollMS
		case "mirror":
			cfg.Mirror = *mirror
		case "hist-bins":
			cfg.HistBins = *histBins
		case "sat-min":
			cfg.SatMin = *satMin
		case "val-min":
			cfg.ValMin = *valMin
		case "max-iter":
			cfg.MaxIterations = *maxIter
		case "epsilon":
			cfg.Epsilon = *epsilon
		case "max-read-failures":
			cfg.MaxReadFailures = *maxReadFails
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	_ = cfg.Validate()
	return cfg, nil
}

// readGuard turns a run of failed camera reads into a fatal error
type readGuard struct {
	limit       int
	consecutive int
}

// observe records a read outcome and reports an error once the limit of
// consecutive failures is reached
func (g *readGuard) observe(ok bool) error {
	if ok {
		g.consecutive = 0
		return nil
	}
	g.consecutive++
	if g.consecutive >= g.limit {
		return fmt.Errorf("camera returned no frame %d times in a row", g.consecutive)
	}
	return nil
}

func main() {
	flag.Parse()

	globalDebugLogger = debuglog.New(debuglog.Options{
		Verbose: *debugVerbose,
		Debug:   *debugMode,
		Dir:     debugDir,
	})
	defer globalDebugLogger.Close()
	tracking.SetDebugFunction(debugMsg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listenAddr != "" {
		debugMsg("LISTEN", fmt.Sprintf("Waiting for telemetry on %s", *listenAddr))
		err := telemetry.Listen(ctx, *listenAddr, nil, func(p image.Point) {
			fmt.Print(telemetry.FormatLine(p))
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration Error: %v\n", err)
		os.Exit(1)
	}
	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving configuration: %v\n", err)
			os.Exit(1)
		}
		debugMsg("CONFIG", fmt.Sprintf("Configuration written to %s", *saveConfig))
		return
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		globalDebugLogger.Close()
		os.Exit(1)
	}
}

// run owns the capture/track/show loop until ctx is cancelled, the window
// asks to quit, or the camera stops delivering frames
func run(ctx context.Context, cfg *config.Config) error {
	stats := metrics.New()
	stats.SetMode(int(tracking.ModeIdle))

	debugMsg("TELEMETRY", fmt.Sprintf("Connecting to %s", cfg.TelemetryAddr))
	sink, err := telemetry.Dial(ctx, cfg.TelemetryAddr, cfg.DialTimeout(), stats)
	if err != nil {
		return fmt.Errorf("the server is not on: %w", err)
	}
	defer sink.Close()
	debugMsg("TELEMETRY", fmt.Sprintf("Connected to %s", sink.RemoteAddr()))

	params := cfg.TrackingParams()
	proc, err := vision.NewHueProcessor(params)
	if err != nil {
		return err
	}
	defer proc.Close()

	debugMsg("CAPTURE", fmt.Sprintf("Opening capture device %d", cfg.Camera))
	cam, err := vision.OpenCamera(cfg.Camera)
	if err != nil {
		return err
	}
	defer cam.Close()

	selState := selection.NewState(stats)
	window := display.Open(cfg.WindowName, selState)
	defer window.Close()
	debugMsg("DISPLAY", fmt.Sprintf("Window %q ready: press 's' or space to select a region, 'q' or ESC to quit", cfg.WindowName))

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, stats)
		defer srv.Close()
	}

	tracker := tracking.NewTracker(proc, sink, stats)
	renderer := overlay.NewRenderer()
	guard := &readGuard{limit: cfg.MaxReadFailures}

	perfTicker := time.NewTicker(perfReportInterval)
	defer perfTicker.Stop()

	frame := gocv.NewMat()
	defer frame.Close()

	lastFPS := 0.0
	lastSinkError := error(nil)
	for {
		select {
		case <-ctx.Done():
			debugMsg("INFO", "Received shutdown signal. Cleaning up...")
			return nil
		case <-perfTicker.C:
			lastFPS = stats.FPS()
			debugMsg("PERF", fmt.Sprintf("Capture: %.1f fps | Tracked: %d | Lines: %d | Write errors: %d | Dropped: %d",
				lastFPS, stats.FramesTracked.Load(), stats.TelemetryLines.Load(),
				stats.TelemetryErrors.Load(), stats.FramesDropped.Load()))
		default:
		}

		ok := cam.Read(&frame)
		if err := guard.observe(ok); err != nil {
			return err
		}
		if !ok {
			stats.FrameDropped()
			debugMsgVerbose("CAPTURE", "Dropped empty frame")
			continue
		}
		stats.FrameRead()

		proc.Prepare(&frame)

		sel, ready := selState.Take()
		res := tracker.Step(sel, ready)

		// Report the first failure of a run of failed writes only
		if err := sink.LastError(); err != nil && lastSinkError == nil {
			debugMsg("TELEMETRY", fmt.Sprintf("Write failed, continuing: %v", err), res.TrackID)
		}
		lastSinkError = sink.LastError()

		renderer.DrawTrack(&frame, res)
		if *statusOverlay {
			renderer.DrawStatus(&frame, overlay.Status{
				Time:    time.Now(),
				FPS:     lastFPS,
				Mode:    res.Mode,
				TrackID: res.TrackID,
				Sink:    cfg.TelemetryAddr,
			})
		}
		if *terminalOverlay {
			history := globalDebugLogger.History(0)
			lines := make([]string, 0, len(history))
			for _, m := range history {
				lines = append(lines, m.String())
			}
			renderer.DrawTerminal(&frame, lines)
		}

		if window.Show(frame, cfg.PollInterval()) == display.Quit {
			debugMsg("INFO", "Quit requested from window")
			return nil
		}
	}
}

func startMetricsServer(addr string, stats *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", stats.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		debugMsg("METRICS", fmt.Sprintf("Serving Prometheus metrics on %s/metrics", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			debugMsg("METRICS", fmt.Sprintf("Metrics server stopped: %v", err))
		}
	}()
	return srv
}
