package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/ahmed11551/tasbih/internal/tapstorm"
)

// Default configuration constants.
const (
	defaultNumUsers     = 100
	defaultTapsPerUser  = 50
	defaultOfflineTaps  = 10
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultStormTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numUsers = flag.Int("users", defaultNumUsers, "Number of simulated users")
		taps     = flag.Int("taps", defaultTapsPerUser, "Live taps fired per user")
		offline  = flag.Int("offline", defaultOfflineTaps, "Offline events replayed per user")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file for storm output (default: storm_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		tapstorm.ShowHelp()
		return
	}

	if err := tapstorm.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultStormTimeout)
	defer cancel()

	config := &tapstorm.Config{
		BaseURL:     *baseURL,
		NumUsers:    *numUsers,
		TapsPerUser: *taps,
		OfflineTaps: *offline,
		Workers:     *workers,
		Timeout:     *timeout,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if err := tapstorm.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Storm failed: " + err.Error() + "\n")
		return
	}
}
