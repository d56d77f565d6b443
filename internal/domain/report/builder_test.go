package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/report"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDailyReport(t *testing.T) {
	ctx := context.Background()

	Convey("Given a Dubai user with taps straddling local midnight", t, func() {
		store := repository.NewMemStore()
		builder := report.NewBuilder(store)

		So(store.PutUser(ctx, model.User{ID: "u1", Timezone: "Asia/Dubai"}), ShouldBeNil)

		tap := func(id string, delta int, at time.Time) {
			So(store.InsertEvent(ctx, model.CounterEvent{
				ID: id, UserID: "u1", SessionID: "s1", Type: model.EventTap,
				Delta: delta, Timestamp: at, Timezone: "Asia/Dubai",
			}), ShouldBeNil)
		}

		// 23:30 local on March 9 (19:30 UTC) and 00:30 local on March 10
		// (20:30 UTC March 9).
		tap("before", 3, time.Date(2025, 3, 9, 19, 30, 0, 0, time.UTC))
		tap("after", 2, time.Date(2025, 3, 9, 20, 30, 0, 0, time.UTC))

		Convey("When building the report for March 9 local", func() {
			daily, err := builder.Daily(ctx, "u1", "2025-03-09")

			Convey("Then only the pre-midnight tap is counted, at local hour 23", func() {
				So(err, ShouldBeNil)
				So(daily.TotalDhikr, ShouldEqual, 3)
				So(daily.HourlyActivity[23], ShouldEqual, 3)
				So(daily.Timezone, ShouldEqual, "Asia/Dubai")
			})
		})

		Convey("When building the report for March 10 local", func() {
			daily, err := builder.Daily(ctx, "u1", "2025-03-10")

			Convey("Then the post-midnight tap lands at local hour 0", func() {
				So(err, ShouldBeNil)
				So(daily.TotalDhikr, ShouldEqual, 2)
				So(daily.HourlyActivity[0], ShouldEqual, 2)
			})
		})

		Convey("When taps include decrements", func() {
			tap("minus", -1, time.Date(2025, 3, 9, 19, 35, 0, 0, time.UTC))
			daily, err := builder.Daily(ctx, "u1", "2025-03-09")

			Convey("Then activity counts absolute repetitions and sums consistently", func() {
				So(err, ShouldBeNil)
				So(daily.TotalDhikr, ShouldEqual, 4)

				sum := 0
				for _, h := range daily.HourlyActivity {
					sum += h
				}
				So(sum, ShouldEqual, daily.TotalDhikr)
			})
		})

		Convey("When no bucket exists for the day", func() {
			daily, err := builder.Daily(ctx, "u1", "2025-03-09")

			Convey("Then a zeroed bucket is returned instead of an error", func() {
				So(err, ShouldBeNil)
				So(daily.Bucket.Date, ShouldEqual, "2025-03-09")
				So(daily.Bucket.Total, ShouldEqual, 0)
				So(daily.Bucket.Segments, ShouldHaveLength, len(model.SegmentNames))
			})
		})

		Convey("When goals were completed that local day", func() {
			completedAt := time.Date(2025, 3, 9, 19, 0, 0, 0, time.UTC)
			g := model.Goal{
				ID: "g1", UserID: "u1", Category: "dhikr", Kind: model.GoalRecite,
				TargetCount: 1, Progress: 1, Status: model.GoalCompleted,
				CreatedAt: completedAt, CompletedAt: &completedAt,
			}
			_, err := store.UpsertGoal(ctx, g)
			So(err, ShouldBeNil)

			daily, err := builder.Daily(ctx, "u1", "2025-03-09")

			Convey("Then they appear in the report", func() {
				So(err, ShouldBeNil)
				So(daily.CompletedGoals, ShouldHaveLength, 1)
				So(daily.CompletedGoals[0].ID, ShouldEqual, "g1")
			})
		})

		Convey("When an empty day is reported", func() {
			daily, err := builder.Daily(ctx, "u1", "2024-01-01")

			Convey("Then MaxActivity still floors at one", func() {
				So(err, ShouldBeNil)
				So(daily.TotalDhikr, ShouldEqual, 0)
				So(daily.MaxActivity, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a user without a stored profile", t, func() {
		store := repository.NewMemStore()
		builder := report.NewBuilder(store)

		Convey("When building today's report", func() {
			daily, err := builder.Daily(ctx, "ghost", "")

			Convey("Then the report degrades to UTC instead of failing", func() {
				So(err, ShouldBeNil)
				So(daily.Timezone, ShouldEqual, "UTC")
				So(daily.Date, ShouldNotBeEmpty)
			})
		})
	})
}
