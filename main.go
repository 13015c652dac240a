package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"camfleet/cmd"
	"camfleet/internal/api"
	"camfleet/internal/cameras"
	"camfleet/internal/config"
	"camfleet/internal/devices"
	"camfleet/internal/events"
	"camfleet/internal/logging"
	"camfleet/internal/metrics"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera fleet settings
	CamerasBinary      string `help:"Streaming binary spawned per camera" default:"camstream" toml:"cameras.binary" env:"CAMERAS_BINARY"`
	CamerasPixelFormat string `help:"Required pixel format" default:"YUY2" toml:"cameras.pixel_format" env:"CAMERAS_PIXEL_FORMAT"`
	CamerasWidth       int    `help:"Capture width" default:"1920" toml:"cameras.width" env:"CAMERAS_WIDTH"`
	CamerasHeight      int    `help:"Capture height" default:"1080" toml:"cameras.height" env:"CAMERAS_HEIGHT"`
	CamerasBasePort    int    `help:"First streaming port, incremented per camera" default:"8554" toml:"cameras.base_port" env:"CAMERAS_BASE_PORT"`
	CamerasKillTimeout string `help:"Per-process kill wait" default:"3s" toml:"cameras.kill_timeout" env:"CAMERAS_KILL_TIMEOUT"`

	// Recording settings
	RecordingsDir string `help:"Directory recording stems resolve into" default:"./recordings" toml:"recordings.dir" env:"RECORDINGS_DIR"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCameras string `help:"Supervisor logging level" default:"info" toml:"logging.cameras" env:"LOGGING_CAMERAS"`
	LoggingCamera  string `help:"Subprocess output logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCaps    string `help:"Capability parser logging level" default:"info" toml:"logging.caps" env:"LOGGING_CAPS"`
	LoggingDevices string `help:"Device discovery logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	// Declared before New so the callback can reach the parsed root command;
	// humacli invokes the callback from Run, after cli is assigned.
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"cameras": opts.LoggingCameras,
				"camera":  opts.LoggingCamera,
				"caps":    opts.LoggingCaps,
				"devices": opts.LoggingDevices,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")

		killTimeout, err := time.ParseDuration(opts.CamerasKillTimeout)
		if err != nil {
			logger.Warn("Invalid kill timeout, using default", "value", opts.CamerasKillTimeout)
			killTimeout = 0
		}

		bus := events.New()
		fleetMetrics := metrics.NewFleet(bus)
		discoverer := devices.NewDiscoverer(bus)

		supervisor := cameras.NewSupervisor(cameras.SupervisorConfig{
			Binary:      opts.CamerasBinary,
			PixelFormat: opts.CamerasPixelFormat,
			Width:       opts.CamerasWidth,
			Height:      opts.CamerasHeight,
			BasePort:    opts.CamerasBasePort,
			KillTimeout: killTimeout,
		}, discoverer, bus)
		service := cameras.NewService(supervisor, bus, opts.RecordingsDir)

		server := api.NewServer(&api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Service:        service,
			Supervisor:     supervisor,
			Bus:            bus,
			MetricsHandler: fleetMetrics.Handler(),
		})

		// Logging levels follow the config file without a restart.
		watcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		}, logger)
		watcher.OnReload(func(cfg logging.Config) {
			logger.Info("Applying reloaded logging configuration")
			logging.ApplyLevels(cfg)
		})

		hooks.OnStart(func() {
			if mkErr := os.MkdirAll(opts.RecordingsDir, 0o755); mkErr != nil {
				logger.Warn("Failed to create recording directory", "dir", opts.RecordingsDir, "error", mkErr)
			}

			started := supervisor.StartAll(context.Background())
			logger.Info("Camera fleet started", "processes", started)

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher unavailable", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			fleetMetrics.Close()

			if shutdownErr := supervisor.Shutdown(syscall.SIGTERM); shutdownErr != nil {
				logger.Error("Camera processes survived shutdown", "error", shutdownErr)
				os.Exit(1)
			}
			logger.Info("Shutdown complete")
		})
	})

	cli.Root().AddCommand(cmd.CreateDiscoverCmd())
	cli.Run()
}
