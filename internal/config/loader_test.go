package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/demonlist/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("DEMONLIST_ADDR", ":8080")
			t.Setenv("DEMONLIST_STORAGE_DRIVER", "SQLite")
			t.Setenv("DEMONLIST_STORAGE_PATH", "/tmp/levels.db")
			t.Setenv("DEMONLIST_RANK_POLICY", "shift")
			t.Setenv("DEMONLIST_DECAY", "0.9")
			t.Setenv("DEMONLIST_TOKEN_TTL", "30m")
			t.Setenv("DEMONLIST_LOGIN_BURST", "2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StoragePath, convey.ShouldEqual, "/tmp/levels.db")
				convey.So(cfg.RankPolicy, convey.ShouldEqual, "shift")
				convey.So(cfg.Decay, convey.ShouldEqual, 0.9)
				convey.So(cfg.TokenTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.LoginBurst, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			yamlContent := `
addr: ":7070"
storage_driver: memory
base_points: 200
max_leaderboard_limit: 25
admin_username: admin
admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
jwt_secret: s3cret
metrics_namespace: levels
metrics_buckets: [1, 5, 25]
metrics_labels:
  env: staging
`
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)
			t.Setenv("DEMONLIST_CONFIG", path)
			t.Setenv("DEMONLIST_MAX_LEADERBOARD_LIMIT", "50")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env vars still win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.BasePoints, convey.ShouldEqual, 200)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.AdminEnabled(), convey.ShouldBeTrue)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "levels")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "list")
				convey.So(cfg.MetricsBuckets, convey.ShouldResemble, []float64{1, 5, 25})
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"env": "staging"})
			})
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("DEMONLIST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an env var holds an invalid value", func() {
			t.Setenv("DEMONLIST_RANK_POLICY", "rotate")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"DEMONLIST_CONFIG", "DEMONLIST_ADDR", "DEMONLIST_STORAGE_DRIVER", "DEMONLIST_STORAGE_PATH",
		"DEMONLIST_RANK_POLICY", "DEMONLIST_DECAY", "DEMONLIST_TOKEN_TTL", "DEMONLIST_LOGIN_BURST",
		"DEMONLIST_MAX_LEADERBOARD_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}
