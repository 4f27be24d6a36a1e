// Devialet Bridge
//
// This is the entry point for the Devialet bridge. It polls one Devialet
// speaker over IP Control and exposes it to the rest of the building:
//   - MQTT command, state, entity and health topics
//   - REST API with a WebSocket state stream
//   - Prometheus metrics and optional InfluxDB telemetry
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// A missing .env is normal; the environment may already be set.
	_ = godotenv.Load() //nolint:errcheck // optional file

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
