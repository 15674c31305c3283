package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/demonlist/internal/adapters/auth"
	"github.com/okian/demonlist/internal/config"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cfg := config.New()
	cfg.StorageDriver = "sqlite"
	cfg.StoragePath = filepath.Join(t.TempDir(), "levels.db")
	cfg.AdminUsername = "admin"
	cfg.AdminPasswordHash = hash
	cfg.JWTSecret = "test-secret"
	return cfg
}

func call(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given a service built from config", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		log := logger.Get()
		svc, authenticator, err := buildService(ctx, cfg, log)
		convey.So(err, convey.ShouldBeNil)
		convey.So(authenticator, convey.ShouldNotBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		h := newHandler(cfg, svc, authenticator, log)

		convey.Convey("When an admin logs in and creates a level", func() {
			login := call(h, http.MethodPost, "/api/login", `{"username":"admin","password":"pw"}`, nil)
			convey.So(login.Code, convey.ShouldEqual, http.StatusOK)
			var tok struct {
				Token string `json:"token"`
			}
			convey.So(json.Unmarshal(login.Body.Bytes(), &tok), convey.ShouldBeNil)

			created := call(h, http.MethodPost, "/api/levels", `{"title":"Bloodbath"}`,
				map[string]string{"Authorization": "Bearer " + tok.Token})

			convey.Convey("Then the level is listed and the site and docs are served", func() {
				convey.So(created.Code, convey.ShouldEqual, http.StatusCreated)
				list := call(h, http.MethodGet, "/api/levels", "", nil)
				convey.So(list.Body.String(), convey.ShouldContainSubstring, "Bloodbath")
				convey.So(call(h, http.MethodGet, "/", "", nil).Code, convey.ShouldEqual, http.StatusOK)
				convey.So(call(h, http.MethodGet, "/openapi.yaml", "", nil).Code, convey.ShouldEqual, http.StatusOK)
				convey.So(call(h, http.MethodGet, "/healthz", "", nil).Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When writing with a forged token", func() {
			w := call(h, http.MethodPost, "/api/levels", `{"title":"x"}`, map[string]string{"Authorization": "Bearer forged"})

			convey.Convey("Then it is forbidden", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusForbidden)
			})
		})
	})

	convey.Convey("Given a config without admin credentials", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.StorageDriver = "memory"
		svc, authenticator, err := buildService(ctx, cfg, logger.Get())

		convey.Convey("Then the service is read-only", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(authenticator, convey.ShouldBeNil)
			h := newHandler(cfg, svc, authenticator, logger.Get())
			convey.So(call(h, http.MethodPost, "/api/login", `{"username":"a","password":"b"}`, nil).Code, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})

	convey.Convey("Given an unknown storage driver", t, func() {
		cfg := config.New()
		cfg.StorageDriver = "redis"
		_, _, err := buildService(context.Background(), cfg, logger.Get())

		convey.Convey("Then building fails", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestConfigureMetrics(t *testing.T) {
	convey.Convey("Given metric settings in the config", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "levels"
		cfg.MetricsSubsystem = "test"
		cfg.MetricsLabels = map[string]string{"env": "ci"}
		configureMetrics(cfg)
		defer configureMetrics(config.New())

		convey.Convey("When a level count is recorded", func() {
			metrics.UpdateLevelCount(3)

			convey.Convey("Then it is exposed under the configured name and labels", func() {
				expected := `
# HELP levels_test_levels_total Number of levels currently on the list
# TYPE levels_test_levels_total gauge
levels_test_levels_total{env="ci"} 3
`
				err := testutil.GatherAndCompare(metrics.GetRegistry(), strings.NewReader(expected), "levels_test_levels_total")
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("When updating system metrics", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When the updater context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then the goroutine exits", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("updater did not stop")
				}
			})
		})

		convey.Convey("When updating service metrics", func() {
			cfg := config.New()
			cfg.StorageDriver = "memory"
			svc, _, err := buildService(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			updateServiceMetrics(svc)

			convey.Convey("Then the registry is populated", func() {
				count, err := testutil.GatherAndCount(metrics.GetRegistry())
				convey.So(err, convey.ShouldBeNil)
				convey.So(count, convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
