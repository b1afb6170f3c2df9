// Package common holds shared build metadata and logging setup used by all
// binaries in this repository.
package common

import (
	"log/slog"
	"os"
)

// Version is the service version, overridden at build time via ldflags.
var Version = "dev"

// PackageName tags log lines and metrics emitted by this service.
const PackageName = "device-transfer-backend"

// LoggingOpts configures the process-wide slog logger.
type LoggingOpts struct {
	// Debug enables debug-level log messages.
	Debug bool

	// JSON switches the handler to JSON output (for log collectors).
	JSON bool

	// Service is added as a 'service' attribute to every log line.
	Service string

	// Version is added as a 'version' attribute to every log line.
	Version string
}

// SetupLogger creates a slog.Logger according to opts and returns it.
// The logger writes to stderr.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	return logger
}
