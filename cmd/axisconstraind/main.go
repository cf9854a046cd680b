// Command axisconstraind locks trackball motion to its dominant axis.
//
// It grabs a relative pointer device, filters every event through a
// constrain.Processor, and re-emits the result on a uinput virtual pointer.
// The configuration file is watched and processor settings take effect
// without a restart.
//
// Usage:
//
//	axisconstraind [flags]
//
// Examples:
//
//	# Use the configured device and settings
//	axisconstraind
//
//	# Pick a device explicitly and log every lock transition
//	axisconstraind -device /dev/input/event5 -log-level debug
//
//	# Expose Prometheus metrics
//	axisconstraind -metrics-addr 127.0.0.1:9477
//
//	# List candidate pointer devices
//	axisconstraind -list
//
//	# Show the last five recorded sessions
//	axisconstraind -history 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"axisconstrain/internal/config"
	"axisconstrain/internal/constrain"
	"axisconstrain/internal/evdev"
	"axisconstrain/internal/health"
	"axisconstrain/internal/logging"
	"axisconstrain/internal/metrics"
	"axisconstrain/internal/pipeline"
	"axisconstrain/internal/store"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// options are the command-line flags. Flags left unset do not override the
// configuration file.
type options struct {
	configPath  string
	device      string
	grab        bool
	logLevel    string
	metricsAddr string
	list        bool
	history     int
	showVersion bool
	set         map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs.StringVar(&o.configPath, "config", config.ConfigPath(), "configuration file (toml, json, or yaml)")
	fs.StringVar(&o.device, "device", "", "evdev node to read, e.g. /dev/input/event5")
	fs.BoolVar(&o.grab, "grab", true, "grab the device exclusively")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve metrics on this address")
	fs.BoolVar(&o.list, "list", false, "list pointer devices and exit")
	fs.IntVar(&o.history, "history", 0, "print the last N recorded sessions and exit")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply layers explicitly set flags over cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["device"] {
		cfg.Device.Path = o.device
	}
	if o.set["grab"] {
		cfg.Device.Grab = o.grab
	}
	if o.set["log-level"] {
		cfg.Logging.Level = o.logLevel
	}
	if o.set["metrics-addr"] {
		cfg.Metrics.Enabled = o.metricsAddr != ""
		cfg.Metrics.ListenAddr = o.metricsAddr
	}
}

func main() {
	fs := flag.NewFlagSet("axisconstraind", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "axisconstraind - lock pointer motion to the dominant axis\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nFlags:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment overrides: AXISCONSTRAIN_THRESHOLD, AXISCONSTRAIN_STICKY,\n")
		fmt.Fprintf(os.Stderr, "AXISCONSTRAIN_RELEASE_AFTER_MS, AXISCONSTRAIN_DEVICE, AXISCONSTRAIN_GRAB,\n")
		fmt.Fprintf(os.Stderr, "AXISCONSTRAIN_LOG_LEVEL, AXISCONSTRAIN_LOG_PATH, AXISCONSTRAIN_METRICS_ADDR,\n")
		fmt.Fprintf(os.Stderr, "AXISCONSTRAIN_HISTORY, AXISCONSTRAIN_HISTORY_PATH\n")
	}
	opts, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("axisconstraind %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return
	}
	if opts.list {
		if err := listDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if opts.history > 0 {
		if err := showHistory(opts, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func listDevices() error {
	devices, err := evdev.FindPointers()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No pointer devices found.")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-20s %s\n", d.Path(), d.Name)
	}
	return nil
}

func run(opts *options) error {
	loader := config.NewLoader(opts.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger, err := logging.New(logging.FromSettings(cfg.Logging))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewConstrainMetrics(nil)
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.ListenAddr, m.Registry(), checker, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	path := cfg.Device.Path
	if path == "" {
		devices, err := evdev.FindPointers()
		if err != nil {
			return fmt.Errorf("discover devices: %w", err)
		}
		path, err = evdev.Select(devices, "", cfg.Device.NameMatch, cfg.Output.Name)
		if err != nil {
			return err
		}
	}

	src, err := evdev.Open(path, cfg.Device.Grab)
	if err != nil {
		return err
	}
	defer src.Close()
	m.DevicesConnected.Set(1)
	defer m.DevicesConnected.Set(0)
	checker.RegisterFunc("device", true, health.DeviceCheck(path))

	var sink pipeline.Sink = discardSink{}
	if cfg.Output.Enabled {
		w, err := evdev.CreateVirtualPointer(cfg.Output.Name)
		if err != nil {
			return err
		}
		defer w.Close()
		sink = w
	}

	var obs constrain.Observer = m
	var rec *store.Recorder
	if cfg.History.Enabled {
		db, err := store.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		rec, err = store.NewRecorder(db, store.Session{
			Device:         path,
			Threshold:      cfg.Constrain.Threshold,
			Sticky:         cfg.Constrain.Sticky,
			ReleaseAfterMs: cfg.Constrain.ReleaseAfterMs,
		}, store.WithRecorderLogger(logger.WithComponent("history").Logger))
		if err != nil {
			return fmt.Errorf("start history session: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("close history session", "error", err)
			}
		}()
		obs = constrain.Observers{m, rec}
		checker.RegisterFunc("history", false, health.DatabaseCheck(db.DB().PingContext))
	}

	proc, err := newProcessor(cfg.Constrain, logger, obs)
	if err != nil {
		return err
	}
	pl := pipeline.New(src, proc, sink, pipeline.Config{
		Logger:  logger.WithComponent("pipeline").Logger,
		Latency: m,
	})
	checker.RegisterFunc("pipeline", true, health.CustomCheck(func() error {
		if !pl.Running() {
			return errors.New("pipeline not running")
		}
		return nil
	}))
	defer func() {
		if c, ok := pl.Filter().(*constrain.Processor); ok {
			c.Close()
		}
	}()

	watchConfig(ctx, loader, pl, logger, m, obs, rec)
	defer loader.Close()

	logger.Info("axisconstraind started",
		"version", version,
		"device", path,
		"grab", cfg.Device.Grab,
		"output", cfg.Output.Enabled,
		"threshold", cfg.Constrain.Threshold,
		"sticky", cfg.Constrain.Sticky,
		"release_after", cfg.Constrain.ReleaseAfter())

	crash := logging.NewCrashHandler(filepath.Join(config.PlatformLogDir(), "crash"), "axisconstraind", logger)
	crash.SetVersion(version)

	checker.SetReady(true)
	defer checker.SetReady(false)

	var runErr error
	if err := crash.Guard(map[string]string{"device": path}, func() {
		runErr = pl.Run(ctx)
	}); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("axisconstraind stopped")
	return nil
}

func newProcessor(c config.ConstrainConfig, logger *logging.Logger, obs constrain.Observer) (*constrain.Processor, error) {
	return constrain.New(c.ProcessorConfig(),
		constrain.WithLogger(logger.WithComponent("constrain").Logger),
		constrain.WithObserver(obs),
	)
}

// watchConfig rebuilds the processor whenever the constrain section changes.
// Device and output changes need a restart.
func watchConfig(ctx context.Context, loader *config.Loader, pl *pipeline.Pipeline, logger *logging.Logger,
	m *metrics.ConstrainMetrics, obs constrain.Observer, rec *store.Recorder) {
	loader.OnChange(func(old, new *config.Config) {
		if lvl, err := logging.ParseLevel(new.Logging.Level); err == nil {
			logger.SetLevel(lvl)
		}
		if old != nil && (old.Device != new.Device || old.Output != new.Output) {
			logger.Warn("device and output changes take effect after restart")
		}
		if old != nil && old.Constrain == new.Constrain {
			return
		}
		proc, err := newProcessor(new.Constrain, logger, obs)
		if err != nil {
			logger.Error("rebuild processor", "error", err)
			return
		}
		pl.SetFilter(proc)
		m.LockedAxis.Set(int64(constrain.AxisNone))
		if rec != nil {
			// The swapped-out processor may have held a lock.
			rec.ObserveRelease()
			if err := rec.RecordReload(proc.Config()); err != nil {
				logger.Warn("record reload", "error", err)
			}
		}
		logger.Info("configuration reloaded",
			"threshold", new.Constrain.Threshold,
			"sticky", new.Constrain.Sticky,
			"release_after", new.Constrain.ReleaseAfter())
	})

	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				logger.Warn("config reload failed, keeping previous settings", "error", err)
			}
		}
	}()
}

// showHistory prints the most recent sessions from the history database.
func showHistory(opts *options, w io.Writer) error {
	cfg, err := config.NewLoader(opts.configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return fmt.Errorf("no history at %s: %w", cfg.History.Path, err)
	}

	db, err := store.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ValidateSchema(db.DB()); err != nil {
		return fmt.Errorf("history at %s: %w", cfg.History.Path, err)
	}
	status, err := store.GetMigrationStatus(db.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "History %s (schema v%d/%d)\n", cfg.History.Path, status.CurrentVersion, status.LatestVersion)

	sessions, err := db.RecentSessions(opts.history)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}

	for _, sess := range sessions {
		sum, err := db.Summarize(sess.ID)
		if err != nil {
			return err
		}
		writeSummary(w, sum)
	}
	return nil
}

func writeSummary(w io.Writer, sum *store.Summary) {
	sess := sum.Session
	mode := "non-sticky"
	if sess.Sticky {
		mode = fmt.Sprintf("sticky %dms", sess.ReleaseAfterMs)
	}
	duration := "running"
	if sess.EndedNs != nil {
		duration = sess.Duration().Round(time.Second).String()
	}
	fmt.Fprintf(w, "#%d %s %s (%s)\n", sess.ID, sess.Started().Format(time.DateTime), sess.Device, duration)
	fmt.Fprintf(w, "   threshold %d, %s, %d events, %d suppressed, %d reloads\n",
		sess.Threshold, mode, sess.Events, sess.Suppressed, sum.Reloads)
	for _, a := range sum.Axes {
		fmt.Fprintf(w, "   %-4s %5d locks  held %-10s %d events  %d suppressed\n",
			a.Axis, a.Locks, a.Held.Round(time.Millisecond), a.Events, a.Suppressed)
	}
}

// serveMetrics serves /metrics and the health probes on addr.
func serveMetrics(addr string, reg *metrics.Registry, checker *health.Checker, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.HTTPHandler())
	checker.RegisterHandlers(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

// discardSink drops events when no virtual pointer is configured.
type discardSink struct{}

func (discardSink) WriteEvent(constrain.Event) error { return nil }
