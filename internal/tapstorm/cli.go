package tapstorm

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ahmed11551/tasbih/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "storm_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the tap storm tool.
func ShowHelp() {
	os.Stdout.WriteString(`Tasbih Tap Storm Tool
=====================

A concurrent load tool for the counting core: seeds goals and sessions,
fires tap bursts, replays an offline batch twice to exercise the
idempotent sync path, then verifies daily report totals.

Usage:
  go run cmd/tap-storm/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of simulated users (default 100)
  -taps int
        Live taps fired per user (default 50)
  -offline int
        Offline events replayed per user (default 10)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for storm output (default: storm_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Storm with default settings
  go run cmd/tap-storm/main.go

  # Heavier storm against a remote host
  go run cmd/tap-storm/main.go -users 1000 -taps 200 -url http://10.0.0.5:9080

  # Exercise only the offline sync path
  go run cmd/tap-storm/main.go -taps 0 -offline 100
`)
}
