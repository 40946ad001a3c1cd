// Package main runs the semstreams-fix bridge: business messages from NATS
// are sent over FIX sessions, and all FIX traffic is echoed back to NATS.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Build information
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semstreams-fix"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}
