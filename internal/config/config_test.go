package config_test

import (
	"runtime"
	"testing"

	"github.com/ahmed11551/tasbih/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBPath, convey.ShouldEqual, "")
			convey.So(cfg.WebhookQueueSize, convey.ShouldEqual, 4096)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.RecentEventCount, convey.ShouldEqual, 20)
			convey.So(cfg.BurstWindowMS, convey.ShouldEqual, 1000)
			convey.So(cfg.BurstThreshold, convey.ShouldEqual, 100)
			convey.So(cfg.PerfCapacity, convey.ShouldEqual, 10_000)
			convey.So(cfg.PerfRetentionMin, convey.ShouldEqual, 60)
			convey.So(cfg.SlowThresholdMS, convey.ShouldEqual, 500)
		})
	})
}
