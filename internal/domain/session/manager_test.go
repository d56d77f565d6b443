package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/session"
	"github.com/ahmed11551/tasbih/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerStart(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session manager", t, func() {
		store := repository.NewMemStore()
		mgr := session.NewManager(store, logger.Get())

		Convey("When starting a first session", func() {
			s, err := mgr.Start(ctx, session.StartRequest{
				UserID:   "u1",
				GoalID:   "g1",
				Category: "dhikr",
				ItemID:   "subhanallah",
				Segment:  model.SegmentFajr,
			})

			Convey("Then an open session with the references is returned", func() {
				So(err, ShouldBeNil)
				So(s.ID, ShouldNotBeEmpty)
				So(s.UserID, ShouldEqual, "u1")
				So(s.GoalID, ShouldEqual, "g1")
				So(s.Segment, ShouldEqual, model.SegmentFajr)
				So(s.Open(), ShouldBeTrue)
			})
		})

		Convey("When starting a second session for the same user", func() {
			first, err := mgr.Start(ctx, session.StartRequest{UserID: "u1", Category: "dhikr"})
			So(err, ShouldBeNil)

			second, err := mgr.Start(ctx, session.StartRequest{UserID: "u1", Category: "quran"})
			So(err, ShouldBeNil)

			Convey("Then the first one is force-closed", func() {
				prior, err := store.GetSession(ctx, first.ID)
				So(err, ShouldBeNil)
				So(prior.Open(), ShouldBeFalse)
				So(second.Open(), ShouldBeTrue)
			})
		})

		Convey("When using a fixed clock", func() {
			at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
			s, err := mgr.WithClock(func() time.Time { return at }).
				Start(ctx, session.StartRequest{UserID: "u1", Category: "dhikr"})

			Convey("Then the session is stamped with it", func() {
				So(err, ShouldBeNil)
				So(s.StartedAt, ShouldEqual, at)
			})
		})
	})
}
