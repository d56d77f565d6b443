// Package report reconstructs daily activity from the event log.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/localtime"
	"github.com/ahmed11551/tasbih/internal/domain/model"
)

// HoursPerDay is the length of the hourly activity array.
const HoursPerDay = 24

// Daily is one local calendar day of counting activity.
type Daily struct {
	Date           string            `json:"date"`
	Timezone       string            `json:"timezone"`
	CompletedGoals []model.Goal      `json:"completed_goals"`
	Bucket         model.DailyBucket `json:"daily_bucket"`
	TotalDhikr     int               `json:"total_dhikr_count"`
	// HourlyActivity buckets abs(delta) by the local hour each event was
	// captured in, not the UTC hour, so activity near the user's
	// midnight lands on the right day.
	HourlyActivity [HoursPerDay]int `json:"hourly_activity"`
	// MaxActivity is never below 1 so callers can normalize intensity
	// without guarding against division by zero.
	MaxActivity int `json:"max_activity"`
}

// Builder assembles daily reports for a user.
type Builder struct {
	store repository.Store
	now   func() time.Time
}

// NewBuilder creates a report builder on top of store.
func NewBuilder(store repository.Store) *Builder {
	return &Builder{store: store, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Daily builds the report for the user's local calendar date. An empty
// date resolves to today in the user's stored timezone.
func (b *Builder) Daily(ctx context.Context, userID, date string) (Daily, error) {
	// Profiles are written by an external service; counting works before
	// one exists, so a missing profile reads as UTC rather than an error.
	tz := "UTC"
	user, err := b.store.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Daily{}, fmt.Errorf("load user: %w", err)
	}
	if err == nil && user.Timezone != "" {
		tz = user.Timezone
	}

	if date == "" {
		if date, err = localtime.Date(b.now().UTC(), tz); err != nil {
			return Daily{}, fmt.Errorf("resolve today: %w", err)
		}
	}

	from, to, err := localtime.DayRange(date, tz)
	if err != nil {
		return Daily{}, fmt.Errorf("resolve day range: %w", err)
	}

	bucket, err := b.store.GetBucket(ctx, userID, date)
	if errors.Is(err, repository.ErrNotFound) {
		bucket = model.NewDailyBucket(userID, date)
	} else if err != nil {
		return Daily{}, fmt.Errorf("load bucket: %w", err)
	}

	completed, err := b.store.ListGoalsCompletedBetween(ctx, userID, from, to)
	if err != nil {
		return Daily{}, fmt.Errorf("list completed goals: %w", err)
	}

	taps, err := b.store.ListTapEvents(ctx, userID, from, to)
	if err != nil {
		return Daily{}, fmt.Errorf("list tap events: %w", err)
	}

	out := Daily{
		Date:           date,
		Timezone:       tz,
		CompletedGoals: completed,
		Bucket:         bucket,
	}
	for _, e := range taps {
		hour, err := localtime.Hour(e.Timestamp, tz)
		if err != nil {
			return Daily{}, fmt.Errorf("resolve local hour: %w", err)
		}
		d := e.Delta
		if d < 0 {
			d = -d
		}
		out.HourlyActivity[hour] += d
		out.TotalDhikr += d
	}

	out.MaxActivity = 1
	for _, v := range out.HourlyActivity {
		if v > out.MaxActivity {
			out.MaxActivity = v
		}
	}
	return out, nil
}
