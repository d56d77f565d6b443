package tapstorm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed11551/tasbih/pkg/logger"
)

// segments cycled through when seeding sessions.
var segments = []string{"fajr", "dhuhr", "asr", "maghrib", "isha"}

// seedUsers creates a goal and an open session for every simulated user.
func seedUsers(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) ([]stormUser, error) {
	logger.Get().Info(ctx, "seeding users", logger.Int("numUsers", config.NumUsers))

	users := make([]stormUser, 0, config.NumUsers)
	for i := 0; i < config.NumUsers; i++ {
		u := stormUser{
			UserID:  "storm-" + uuid.New().String(),
			Segment: segments[i%len(segments)],
		}

		goal := goalRequest{
			Category:    "dhikr",
			ItemID:      "subhanallah",
			Kind:        "recite",
			TargetCount: config.TapsPerUser + config.OfflineTaps + 1,
			Segment:     u.Segment,
		}
		resp, err := client.Post(ctx, config.BaseURL+"/goals", u.UserID, goal)
		if err != nil {
			return nil, fmt.Errorf("create goal for %s: %w", u.UserID, err)
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := decodeResponse(resp, &created); err != nil || resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("create goal for %s: status %d", u.UserID, resp.StatusCode)
		}
		u.GoalID = created.ID

		sess := sessionRequest{
			GoalID:   u.GoalID,
			Category: "dhikr",
			ItemID:   "subhanallah",
			Segment:  u.Segment,
		}
		resp, err = client.Post(ctx, config.BaseURL+"/sessions/start", u.UserID, sess)
		if err != nil {
			return nil, fmt.Errorf("start session for %s: %w", u.UserID, err)
		}
		var started sessionResponse
		if err := decodeResponse(resp, &started); err != nil || resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("start session for %s: status %d", u.UserID, resp.StatusCode)
		}
		u.SessionID = started.ID

		users = append(users, u)
	}

	stats.UsersSeeded = len(users)
	logger.Get().Info(ctx, "seeded users successfully", logger.Int("count", len(users)))
	return users, nil
}

// stormTaps fires the live tap load through a worker pool.
func stormTaps(ctx context.Context, config *Config, client *HTTPClient, users []stormUser, stats *Stats) error {
	total := config.NumUsers * config.TapsPerUser
	if total == 0 {
		return nil
	}
	log.Printf("firing %d taps with %d workers...", total, config.Workers)

	var (
		submitted  int64
		successful int64
		suspected  int64
		failed     int64
	)

	type tapJob struct {
		user stormUser
	}
	jobChan := make(chan tapJob, config.Workers*2)
	var wg sync.WaitGroup

	var lastReport time.Time
	reportInterval := time.Second

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddInt64(&submitted, 1)
				body := tapRequest{SessionID: job.user.SessionID, Delta: 1, Segment: job.user.Segment}
				resp, err := client.Post(ctx, config.BaseURL+"/counter/tap", job.user.UserID, body)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				var tr tapResponse
				if err := decodeResponse(resp, &tr); err != nil || resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&successful, 1)
				if tr.Suspected {
					atomic.AddInt64(&suspected, 1)
				}

				if time.Since(lastReport) >= reportInterval {
					lastReport = time.Now()
					log.Printf("progress: %d/%d taps (ok: %d, suspected: %d, failed: %d)",
						atomic.LoadInt64(&submitted), total,
						atomic.LoadInt64(&successful),
						atomic.LoadInt64(&suspected),
						atomic.LoadInt64(&failed))
				}
			}
		}()
	}

	go func() {
		defer close(jobChan)
		for t := 0; t < config.TapsPerUser; t++ {
			for _, u := range users {
				select {
				case <-ctx.Done():
					return
				case jobChan <- tapJob{user: u}:
				}
			}
		}
	}()

	wg.Wait()

	stats.TapsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.TapsSuccessful = int(atomic.LoadInt64(&successful))
	stats.TapsSuspected = int(atomic.LoadInt64(&suspected))
	stats.TapsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("tap storm completed: ok=%d suspected=%d failed=%d",
		stats.TapsSuccessful, stats.TapsSuspected, stats.TapsFailed)
	return nil
}

// stormOffline replays the same offline batch twice per user. The first
// pass must land as synced, the second as already_synced.
func stormOffline(ctx context.Context, config *Config, client *HTTPClient, users []stormUser, stats *Stats) error {
	if config.OfflineTaps == 0 {
		return nil
	}
	log.Printf("replaying %d offline events per user, twice...", config.OfflineTaps)

	var synced, duplicate, failed int64

	for _, u := range users {
		batch := syncRequest{Events: make([]syncEvent, 0, config.OfflineTaps)}
		for i := 0; i < config.OfflineTaps; i++ {
			batch.Events = append(batch.Events, syncEvent{
				OfflineID: uuid.New().String(),
				SessionID: u.SessionID,
				EventType: "tap",
				Delta:     1,
				Segment:   u.Segment,
			})
		}

		for pass := 0; pass < 2; pass++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			resp, err := client.Post(ctx, config.BaseURL+"/sync/offline", u.UserID, batch)
			if err != nil {
				failed += int64(len(batch.Events))
				continue
			}
			var sr syncResponse
			if err := decodeResponse(resp, &sr); err != nil || resp.StatusCode != http.StatusOK {
				failed += int64(len(batch.Events))
				continue
			}
			for _, result := range sr.Results {
				switch result.Status {
				case "synced":
					synced++
				case "already_synced":
					duplicate++
				default:
					failed++
				}
			}
		}
	}

	stats.OfflineSynced = int(synced)
	stats.OfflineDuplicate = int(duplicate)
	stats.OfflineFailed = int(failed)

	log.Printf("offline replay completed: synced=%d already_synced=%d failed=%d",
		synced, duplicate, failed)

	if int(duplicate) != config.NumUsers*config.OfflineTaps {
		log.Printf("warning: expected %d already_synced verdicts, got %d",
			config.NumUsers*config.OfflineTaps, duplicate)
	}
	return nil
}
