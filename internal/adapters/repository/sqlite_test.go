package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestSQLStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	store, err := repository.NewSQLStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreUsers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a SQLite store", t, func() {
		store := newTestSQLStore(t)

		Convey("When putting and getting a user", func() {
			u := model.User{ID: "u1", Locale: "ar", Madhab: "hanafi", Timezone: "Asia/Dubai"}
			So(store.PutUser(ctx, u), ShouldBeNil)

			got, err := store.GetUser(ctx, "u1")

			Convey("Then the stored profile round-trips", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, u)
			})
		})

		Convey("When reading an unknown user", func() {
			_, err := store.GetUser(ctx, "missing")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStoreGoalLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stored active goal near its target", t, func() {
		store := newTestSQLStore(t)
		goal := model.Goal{
			ID: "g1", UserID: "u1", Category: "dhikr", ItemID: "subhanallah",
			Kind: model.GoalRecite, TargetCount: 10, Progress: 8,
			Status: model.GoalActive, CreatedAt: time.Now().UTC(),
		}
		_, err := store.UpsertGoal(ctx, goal)
		So(err, ShouldBeNil)

		Convey("When applying a delta that crosses the target", func() {
			upd, err := store.ApplyGoalDelta(ctx, "g1", 3, time.Now().UTC())

			Convey("Then the goal completes exactly once", func() {
				So(err, ShouldBeNil)
				So(upd.Goal.Progress, ShouldEqual, 11)
				So(upd.Goal.Status, ShouldEqual, model.GoalCompleted)
				So(upd.CompletedNow, ShouldBeTrue)
				So(upd.Goal.CompletedAt, ShouldNotBeNil)

				again, err := store.ApplyGoalDelta(ctx, "g1", 1, time.Now().UTC())
				So(err, ShouldBeNil)
				So(again.CompletedNow, ShouldBeFalse)
				So(again.Goal.CompletedAt.Equal(*upd.Goal.CompletedAt), ShouldBeTrue)
			})
		})

		Convey("When applying a large negative delta", func() {
			upd, err := store.ApplyGoalDelta(ctx, "g1", -100, time.Now().UTC())

			Convey("Then progress floors at zero", func() {
				So(err, ShouldBeNil)
				So(upd.Goal.Progress, ShouldEqual, 0)
			})
		})

		Convey("When the active goal is queried", func() {
			g, err := store.ActiveGoal(ctx, "u1")

			Convey("Then the goal is returned", func() {
				So(err, ShouldBeNil)
				So(g.ID, ShouldEqual, "g1")
			})
		})
	})
}

func TestSQLStoreBuckets(t *testing.T) {
	ctx := context.Background()

	Convey("Given a SQLite store", t, func() {
		store := newTestSQLStore(t)

		Convey("When accumulating segment counts for one day", func() {
			_, err := store.AddToBucket(ctx, "u1", "2025-01-01", model.SegmentFajr, 5)
			So(err, ShouldBeNil)
			b, err := store.AddToBucket(ctx, "u1", "2025-01-01", model.SegmentMaghrib, 3)

			Convey("Then the total tracks the segment sum", func() {
				So(err, ShouldBeNil)
				So(b.Segments[model.SegmentFajr], ShouldEqual, 5)
				So(b.Segments[model.SegmentMaghrib], ShouldEqual, 3)
				So(b.Total, ShouldEqual, 8)
				So(b.Total, ShouldEqual, b.SumSegments())
			})
		})

		Convey("When a decrement would cross zero", func() {
			_, err := store.AddToBucket(ctx, "u2", "2025-01-01", model.SegmentAsr, 2)
			So(err, ShouldBeNil)
			b, err := store.AddToBucket(ctx, "u2", "2025-01-01", model.SegmentAsr, -5)

			Convey("Then the segment floors at zero", func() {
				So(err, ShouldBeNil)
				So(b.Segments[model.SegmentAsr], ShouldEqual, 0)
				So(b.Total, ShouldEqual, 0)
			})
		})

		Convey("When the segment name is not one of the five slots", func() {
			_, err := store.AddToBucket(ctx, "u1", "2025-01-01", "brunch", 1)

			Convey("Then ErrUnknownSegment is returned", func() {
				So(errors.Is(err, repository.ErrUnknownSegment), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStoreOfflineIdempotency(t *testing.T) {
	ctx := context.Background()

	Convey("Given an event carrying an offline id", t, func() {
		store := newTestSQLStore(t)
		e := model.CounterEvent{
			ID: "e1", UserID: "u1", SessionID: "s1", Type: model.EventTap,
			Delta: 1, Timestamp: time.Now().UTC(), Timezone: "UTC", OfflineID: "off-1",
		}
		So(store.InsertEvent(ctx, e), ShouldBeNil)

		Convey("When the same offline id is inserted again", func() {
			e.ID = "e2"
			err := store.InsertEvent(ctx, e)

			Convey("Then the unique index rejects it as a duplicate", func() {
				So(errors.Is(err, repository.ErrDuplicateOffline), ShouldBeTrue)
			})
		})

		Convey("When another user reuses the same offline id", func() {
			other := e
			other.ID = "e3"
			other.UserID = "u2"
			err := store.InsertEvent(ctx, other)

			Convey("Then it is accepted; uniqueness is per user", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When events without an offline id repeat", func() {
			blank := model.CounterEvent{
				ID: "e4", UserID: "u1", SessionID: "s1", Type: model.EventTap,
				Delta: 1, Timestamp: time.Now().UTC(), Timezone: "UTC",
			}
			So(store.InsertEvent(ctx, blank), ShouldBeNil)
			blank.ID = "e5"

			Convey("Then the partial index does not apply", func() {
				So(store.InsertEvent(ctx, blank), ShouldBeNil)
			})
		})

		Convey("When checking HasOfflineID", func() {
			has, err := store.HasOfflineID(ctx, "u1", "off-1")
			So(err, ShouldBeNil)
			So(has, ShouldBeTrue)

			has, err = store.HasOfflineID(ctx, "u1", "off-unknown")
			So(err, ShouldBeNil)
			So(has, ShouldBeFalse)
		})
	})
}

func TestSQLStoreSessionsAndEvents(t *testing.T) {
	ctx := context.Background()

	Convey("Given sessions and tap history in SQLite", t, func() {
		store := newTestSQLStore(t)
		now := time.Now().UTC().Truncate(time.Millisecond)
		So(store.InsertSession(ctx, model.Session{ID: "s1", UserID: "u1", StartedAt: now}), ShouldBeNil)
		So(store.InsertSession(ctx, model.Session{ID: "s2", UserID: "u1", StartedAt: now}), ShouldBeNil)

		for i := 0; i < 3; i++ {
			So(store.InsertEvent(ctx, model.CounterEvent{
				ID: fmt.Sprintf("e%d", i), UserID: "u1", SessionID: "s1",
				Type: model.EventTap, Delta: 2, ValueAfter: (i + 1) * 2,
				Timestamp: now.Add(time.Duration(i) * time.Second), Timezone: "UTC",
			}), ShouldBeNil)
		}

		Convey("When closing open sessions", func() {
			closed, err := store.CloseOpenSessions(ctx, "u1", now.Add(time.Minute))

			Convey("Then both sessions are stamped", func() {
				So(err, ShouldBeNil)
				So(closed, ShouldEqual, 2)
				s, err := store.GetSession(ctx, "s1")
				So(err, ShouldBeNil)
				So(s.Open(), ShouldBeFalse)
			})
		})

		Convey("When summing session deltas", func() {
			sum, err := store.SumSessionDeltas(ctx, "s1")

			Convey("Then the signed sum is returned", func() {
				So(err, ShouldBeNil)
				So(sum, ShouldEqual, 6)
			})
		})

		Convey("When summing tap deltas since a cutoff", func() {
			sum, err := store.SumTapDeltas(ctx, "u1", now.Add(time.Second))

			Convey("Then only newer taps count", func() {
				So(err, ShouldBeNil)
				So(sum, ShouldEqual, 4)
			})
		})

		Convey("When listing taps in a range", func() {
			events, err := store.ListTapEvents(ctx, "u1", now, now.Add(2*time.Second))

			Convey("Then the half-open range applies", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
			})
		})

		Convey("When listing recent events", func() {
			events, err := store.ListRecentEvents(ctx, "u1", 2)

			Convey("Then the newest two come back first", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].Timestamp.After(events[1].Timestamp), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStoreSubSecondRanges(t *testing.T) {
	ctx := context.Background()

	Convey("Given taps with fractional-second timestamps", t, func() {
		store := newTestSQLStore(t)
		dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

		So(store.InsertSession(ctx, model.Session{ID: "s1", UserID: "u1", StartedAt: dayStart}), ShouldBeNil)
		So(store.InsertEvent(ctx, model.CounterEvent{
			ID: "e-half", UserID: "u1", SessionID: "s1",
			Type: model.EventTap, Delta: 1, ValueAfter: 1,
			Timestamp: dayStart.Add(500 * time.Millisecond), Timezone: "UTC",
		}), ShouldBeNil)

		Convey("When listing taps for the day containing the event", func() {
			events, err := store.ListTapEvents(ctx, "u1", dayStart, dayStart.Add(24*time.Hour))

			Convey("Then the half-second event stays inside its own day", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].ID, ShouldEqual, "e-half")
			})
		})

		Convey("When listing taps for the previous day", func() {
			events, err := store.ListTapEvents(ctx, "u1", dayStart.Add(-24*time.Hour), dayStart)

			Convey("Then the event does not leak backwards", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 0)
			})
		})

		Convey("When summing tap deltas over a sub-second window", func() {
			So(store.InsertEvent(ctx, model.CounterEvent{
				ID: "e-123", UserID: "u1", SessionID: "s1",
				Type: model.EventTap, Delta: 7, ValueAfter: 8,
				Timestamp: dayStart.Add(123 * time.Millisecond), Timezone: "UTC",
			}), ShouldBeNil)

			sum, err := store.SumTapDeltas(ctx, "u1", dayStart.Add(120*time.Millisecond))

			Convey("Then taps inside the window are counted", func() {
				So(err, ShouldBeNil)
				So(sum, ShouldEqual, 8)
			})
		})

		Convey("When a timestamp round-trips through storage", func() {
			events, err := store.ListRecentEvents(ctx, "u1", 1)

			Convey("Then the fractional second survives", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].Timestamp.Equal(dayStart.Add(500*time.Millisecond)), ShouldBeTrue)
			})
		})
	})
}
