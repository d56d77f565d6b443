package tapstorm

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ahmed11551/tasbih/pkg/logger"
)

// verifyReports pulls each user's daily report and checks that the
// total matches the counts the storm actually landed, and that the
// hourly histogram sums to the same total.
func verifyReports(ctx context.Context, config *Config, client *HTTPClient, users []stormUser, stats *Stats) error {
	log.Println("verifying daily reports...")

	perUserTaps := config.TapsPerUser
	if stats.TapsFailed > 0 && config.NumUsers > 0 {
		// With failures the exact per-user count is unknown; only the
		// histogram invariant is checked in that case.
		log.Printf("note: %d taps failed, skipping exact total check", stats.TapsFailed)
		perUserTaps = -1
	}

	for _, u := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := client.Get(ctx, config.BaseURL+"/reports/daily", u.UserID)
		if err != nil {
			return fmt.Errorf("fetch report for %s: %w", u.UserID, err)
		}
		var report reportResponse
		if err := decodeResponse(resp, &report); err != nil || resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch report for %s: status %d", u.UserID, resp.StatusCode)
		}

		hourlySum := 0
		for _, h := range report.HourlyActivity {
			hourlySum += h
		}

		ok := hourlySum == report.TotalDhikr
		if ok && perUserTaps >= 0 {
			expected := perUserTaps + config.OfflineTaps
			ok = report.TotalDhikr == expected
		}

		if ok {
			stats.ReportsVerified++
		} else {
			stats.ReportMismatches++
			if config.Verbose {
				log.Printf("mismatch for %s: total=%d hourlySum=%d", u.UserID, report.TotalDhikr, hourlySum)
			}
		}
	}

	if stats.ReportMismatches > 0 {
		return fmt.Errorf("%d of %d reports mismatched", stats.ReportMismatches, len(users))
	}

	logger.Get().Info(ctx, "all reports verified", logger.Int("count", stats.ReportsVerified))
	return nil
}
