// Package logging provides structured logging for the Devialet bridge.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same format, level and default attributes.
//
// # Features
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - A discard logger for tests and optional collaborators
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("polling device", "ip", cfg.Device.IP)
//	logger.Error("poll failed", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
