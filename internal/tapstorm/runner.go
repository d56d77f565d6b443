package tapstorm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmed11551/tasbih/pkg/logger"
)

// settleDelay gives the service time to drain queued work before
// verification reads the reports back.
const settleDelay = 2 * time.Second

// Run executes the complete storm: seed, tap, offline replay, verify.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting tap storm",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.NumUsers),
		logger.Int("tapsPerUser", config.TapsPerUser),
		logger.Int("offlineTaps", config.OfflineTaps),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, config, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	users, err := seedUsers(ctx, config, client, stats)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if err := stormTaps(ctx, config, client, users, stats); err != nil {
		return fmt.Errorf("tap storm failed: %w", err)
	}

	if err := stormOffline(ctx, config, client, users, stats); err != nil {
		return fmt.Errorf("offline replay failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for service to settle")
	time.Sleep(settleDelay)

	if err := verifyReports(ctx, config, client, users, stats); err != nil {
		return fmt.Errorf("report verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "storm completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 reads as healthy; the endpoint returns Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final storm statistics.
func displayFinalStats(stats *Stats) {
	var tapsPerSecond float64
	if stats.Duration > 0 {
		tapsPerSecond = float64(stats.TapsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("usersSeeded", stats.UsersSeeded),
		logger.Int("tapsSubmitted", stats.TapsSubmitted),
		logger.Int("tapsSuccessful", stats.TapsSuccessful),
		logger.Int("tapsSuspected", stats.TapsSuspected),
		logger.Int("tapsFailed", stats.TapsFailed),
		logger.Int("offlineSynced", stats.OfflineSynced),
		logger.Int("offlineDuplicate", stats.OfflineDuplicate),
		logger.Int("offlineFailed", stats.OfflineFailed),
		logger.Int("reportsVerified", stats.ReportsVerified),
		logger.Int("reportMismatches", stats.ReportMismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Any("tapsPerSecond", tapsPerSecond))
}
