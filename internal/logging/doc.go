// Package logging provides structured logging with per-module log level
// configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"cameras": "debug",  // Per-module overrides
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("cameras")
//	logger.Info("Starting up", "port", 8080)
//
// Levels can be changed at runtime with ApplyLevels, which the config
// watcher uses on hot reload. Module loggers are cached; their levels are
// backed by slog.LevelVar so already-handed-out loggers pick up changes.
//
// When running under systemd:
//
//	journalctl -t camfleet -f
//	journalctl -t camfleet MODULE=cameras
//
// Example TOML configuration: level and format are reserved keys, every
// other key under [logging] is a per-module level.
//
//	[logging]
//	level = "info"
//	format = "text"
//	cameras = "debug"
//	api = "warn"
package logging
