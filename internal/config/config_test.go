package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/demonlist/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, "file")
			convey.So(cfg.StoragePath, convey.ShouldEqual, "data/levels.json")
			convey.So(cfg.RankPolicy, convey.ShouldEqual, "swap")
			convey.So(cfg.BasePoints, convey.ShouldEqual, 150)
			convey.So(cfg.Decay, convey.ShouldEqual, 0.95)
			convey.So(cfg.TokenTTL, convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.AdminEnabled(), convey.ShouldBeFalse)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid value each", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":       func(c *config.Config) { c.Addr = "" },
			"unknown driver":   func(c *config.Config) { c.StorageDriver = "redis" },
			"missing path":     func(c *config.Config) { c.StoragePath = " " },
			"unknown policy":   func(c *config.Config) { c.RankPolicy = "rotate" },
			"zero base":        func(c *config.Config) { c.BasePoints = 0 },
			"decay above one":  func(c *config.Config) { c.Decay = 1.5 },
			"decay of one":     func(c *config.Config) { c.Decay = 1 },
			"no namespace":     func(c *config.Config) { c.MetricsNamespace = " " },
			"unsorted buckets": func(c *config.Config) { c.MetricsBuckets = []float64{5, 1} },
			"zero limit":       func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"zero ttl":         func(c *config.Config) { c.TokenTTL = 0 },
			"negative burst":   func(c *config.Config) { c.LoginBurst = -1 },
			"admin w/o secret": func(c *config.Config) { c.AdminUsername = "admin" },
		}

		convey.Convey("Then each is rejected as invalid", func() {
			for _, mutate := range cases {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("Then the memory driver needs no path", func() {
			cfg := config.New()
			cfg.StorageDriver = "memory"
			cfg.StoragePath = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
