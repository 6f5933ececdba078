package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("Woodshed v%s\n", version)
	fmt.Println("Audio practice daemon: looping, time-stretch and waveform navigation")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  woodshed [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that owns the playback state for a practice session: import a")
	fmt.Println("  track, scrub it, drop markers, set an A-B loop and bend speed/pitch.")
	fmt.Println("  Accepts actions over a Unix socket (see woodshed-ctl) and publishes")
	fmt.Println("  state changes to UI clients over WebSocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default \"/tmp/woodshed.sock\")\n")
	fmt.Println()
	fmt.Println("  -listen string")
	fmt.Printf("        State WebSocket listen address (default \"127.0.0.1:8723\")\n")
	fmt.Println()
	fmt.Println("  -sample-rate int")
	fmt.Printf("        Speaker output sample rate in Hz (default %d)\n", defaultEngineSampleRate)
	fmt.Println()
	fmt.Println("  -buffer-ms int")
	fmt.Printf("        Speaker buffer size in milliseconds (default %d)\n", defaultEngineBufferMS)
	fmt.Println()
	fmt.Println("  -peak-buckets int")
	fmt.Printf("        Waveform min/max buckets per track (default %d)\n", defaultPeakBuckets)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with defaults")
	fmt.Println("  woodshed")
	fmt.Println()
	fmt.Println("  # Load a config file, override the WS listen address")
	fmt.Println("  woodshed -config ~/.config/woodshed/config.yaml -listen 0.0.0.0:8723")
	fmt.Println()
	fmt.Println("  # Import a track from another terminal")
	fmt.Println("  woodshed-ctl import /path/to/track.mp3")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - The process must have access to an audio output device")
	fmt.Println("  - Supported formats: mp3, wav, flac, ogg")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	// Parse command-line flags
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		listenAddr    = flag.String("listen", "", "State WebSocket listen address")
		sampleRate    = flag.Int("sample-rate", 0, "Speaker output sample rate in Hz")
		bufferMS      = flag.Int("buffer-ms", 0, "Speaker buffer size in milliseconds")
		peakBuckets   = flag.Int("peak-buckets", 0, "Waveform min/max buckets per track")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Config layering: defaults, then file, then explicit flags.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(ExpandPath(*configPath))
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "listen":
			overrides.StateWSListenAddr = listenAddr
		case "sample-rate":
			overrides.AudioSampleRate = sampleRate
		case "buffer-ms":
			overrides.AudioBufferMS = bufferMS
		case "peak-buckets":
			overrides.PeakBuckets = peakBuckets
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	// Shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create action channel - central command bus
	actions := make(chan Action, 64)

	// Initialize the playback engine. Engine callbacks are translated into
	// actions; sends are non-blocking so a wedged core can't deadlock audio.
	engine, err := NewBeepEngine(cfg.Audio,
		func(sec float64, at time.Time) {
			select {
			case actions <- PositionTicked{Sec: sec, At: at}:
			default:
			}
		},
		func(at time.Time) {
			select {
			case actions <- PlaybackFinished{At: at}:
			default:
			}
		},
		logger)
	if err != nil {
		logger.Error("failed to initialize audio engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	runner := NewRunner(engine, computeWaveformPeaks, actions, logger)

	state := NewAppState()
	reducerCfg := DefaultReducerConfig()
	reducerCfg.PeakBuckets = cfg.Peaks.Buckets

	// Broadcast channel feeding the WS broadcaster.
	broadcasts := make(chan StateBroadcast, 128)

	// State WS server components.
	wsServer := NewServer(logger, actions, ServerConfig{})
	mux := http.NewServeMux()
	wsServer.Register(mux, cfg.StateWS.Path)

	httpServer := &http.Server{
		Addr:    cfg.StateWS.ListenAddr,
		Handler: mux,
	}

	logger.Debug("starting woodshed", "version", version)
	logger.Info("listening",
		"ipc", cfg.IPC.SocketPath,
		"state_ws", cfg.StateWS.ListenAddr,
		"ws_path", cfg.StateWS.Path,
		"sample_rate", cfg.Audio.SampleRate,
		"buffer_ms", cfg.Audio.BufferMS,
		"peak_buckets", cfg.Peaks.Buckets)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runCore(gctx, actions, runner, reducerCfg, state, broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, actions, logger)
	})

	g.Go(func() error {
		wsServer.Hub().Run(gctx)
		return nil
	})

	g.Go(func() error {
		RunBroadcaster(gctx, wsServer.Hub(), broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
