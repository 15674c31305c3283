package listcheck_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/demonlist/internal/adapters/auth"
	"github.com/okian/demonlist/internal/adapters/http/api"
	service "github.com/okian/demonlist/internal/app"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ranking"
	"github.com/okian/demonlist/internal/domain/scoring"
	"github.com/okian/demonlist/internal/listcheck"
	"github.com/okian/demonlist/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// newTarget starts an in-process service with an admin account "admin"/"pw".
func newTarget(t *testing.T, policy ranking.Policy, seed ...model.Level) (*httptest.Server, *service.Service) {
	t.Helper()
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	authenticator := auth.New("listcheck-secret", auth.WithAdmin("admin", hash))
	svc := service.New(service.WithAuthorizer(authenticator), service.WithRankPolicy(policy))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	if len(seed) > 0 {
		token, _, err := authenticator.Issue("admin")
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		if _, err := svc.Replace(context.Background(), "Bearer "+token, seed); err != nil {
			t.Fatalf("seed service: %v", err)
		}
	}
	r := chi.NewRouter()
	api.NewServer(svc, api.WithAuthenticator(authenticator)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv, svc
}

func checkConfig(baseURL string) listcheck.Config {
	cfg := listcheck.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Username = "admin"
	cfg.Password = "pw"
	cfg.Operations = 40
	cfg.SeedLevels = 5
	cfg.Readers = 2
	cfg.Seed = 42
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestChecker_Run(t *testing.T) {
	for _, policy := range []ranking.Policy{ranking.PolicySwap, ranking.PolicyShift} {
		Convey("Given a healthy service using the "+string(policy)+" policy", t, func() {
			original := []model.Level{
				{Rank: 1, Title: "Tartarus", RecordHolders: []model.RecordHolder{
					{Name: "Zoink", CompletionPercent: "60"},
					{Name: "Dolphy", CompletionPercent: "100", Verified: true},
				}},
				{Rank: 2, Title: "Bloodbath"},
			}
			srv, svc := newTarget(t, policy, original...)
			client := listcheck.NewClient(srv.URL, time.Second)
			before, err := client.ListRaw(context.Background())
			So(err, ShouldBeNil)

			Convey("When running the check", func() {
				stats, err := listcheck.NewChecker(checkConfig(srv.URL)).Run(context.Background())

				Convey("Then it passes and the original list is restored", func() {
					So(err, ShouldBeNil)
					So(stats.Creates, ShouldBeGreaterThanOrEqualTo, 4)
					So(stats.Duplicates, ShouldEqual, 1)
					So(stats.Creates+stats.Updates+stats.Deletes, ShouldBeGreaterThanOrEqualTo, 40)
					if policy == ranking.PolicySwap {
						So(stats.SwapRoundTrips, ShouldEqual, 1)
					} else {
						So(stats.SwapRoundTrips, ShouldEqual, 0)
					}
					levels := svc.List(context.Background())
					So(len(levels), ShouldEqual, 2)
					So(levels[0].Title, ShouldEqual, "Tartarus")
					So(levels[1].Title, ShouldEqual, "Bloodbath")
				})

				Convey("And the served list is byte for byte what it was", func() {
					after, err := client.ListRaw(context.Background())
					So(err, ShouldBeNil)
					So(string(after), ShouldEqual, string(before))
				})
			})
		})
	}

	Convey("Given wrong admin credentials", t, func() {
		srv, _ := newTarget(t, ranking.PolicySwap)
		cfg := checkConfig(srv.URL)
		cfg.Password = "nope"

		Convey("When running the check", func() {
			_, err := listcheck.NewChecker(cfg).Run(context.Background())

			Convey("Then login fails", func() {
				So(errors.Is(err, listcheck.ErrUnexpectedStatus), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that is not reachable", t, func() {
		srv, _ := newTarget(t, ranking.PolicySwap)
		url := srv.URL
		srv.Close()

		Convey("When running the check", func() {
			_, err := listcheck.NewChecker(checkConfig(url)).Run(context.Background())

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})
}

func TestParseLevels(t *testing.T) {
	Convey("Given level documents", t, func() {
		Convey("When parsing YAML with legacy keys", func() {
			doc := []byte(`
- rank: 2
  title: Sakupen Circles
  youtube: abc
  recordHolders:
    - name: Zoink
      percent: 100
      verified: true
- rank: 1
  title: Acheron
`)
			levels, err := listcheck.ParseLevels(doc, ".yml")

			Convey("Then legacy fields are understood", func() {
				So(err, ShouldBeNil)
				So(len(levels), ShouldEqual, 2)
				So(levels[0].VideoRef, ShouldEqual, "abc")
				So(levels[0].RecordHolders[0].CompletionPercent, ShouldEqual, model.Completion("100"))
				So(levels[1].Title, ShouldEqual, "Acheron")
			})
		})

		Convey("When parsing JSON", func() {
			levels, err := listcheck.ParseLevels([]byte(`[{"rank":1,"title":"Slaughterhouse","creator":"icedcave"}]`), ".JSON")

			Convey("Then the levels are decoded", func() {
				So(err, ShouldBeNil)
				So(levels[0].Creator, ShouldEqual, "icedcave")
			})
		})

		Convey("When the extension is unknown", func() {
			_, err := listcheck.ParseLevels([]byte(`[]`), ".toml")

			Convey("Then the format is rejected", func() {
				So(errors.Is(err, listcheck.ErrUnsupportedFormat), ShouldBeTrue)
			})
		})
	})
}

func TestImport(t *testing.T) {
	Convey("Given a populated service and an import file", t, func() {
		srv, svc := newTarget(t, ranking.PolicySwap, model.Level{Rank: 1, Title: "old"})
		path := filepath.Join(t.TempDir(), "levels.yaml")
		So(os.WriteFile(path, []byte("- title: Avernus\n  rank: 2\n- title: Kyouki\n  rank: 1\n"), 0o600), ShouldBeNil)

		Convey("When importing", func() {
			out, err := listcheck.Import(context.Background(), checkConfig(srv.URL), path)

			Convey("Then the list is replaced and renumbered", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 2)
				levels := svc.List(context.Background())
				So(levels[0].Title, ShouldEqual, "Kyouki")
				So(levels[1].Title, ShouldEqual, "Avernus")
				So(levels[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := listcheck.Import(context.Background(), checkConfig(srv.URL), filepath.Join(t.TempDir(), "missing.json"))

			Convey("Then an error is returned and the list is untouched", func() {
				So(err, ShouldNotBeNil)
				So(svc.List(context.Background())[0].Title, ShouldEqual, "old")
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a service with record holders", t, func() {
		srv, _ := newTarget(t, ranking.PolicySwap,
			model.Level{Rank: 1, Title: "A", RecordHolders: []model.RecordHolder{{Name: "ana", CompletionPercent: "100"}}},
			model.Level{Rank: 2, Title: "B", RecordHolders: []model.RecordHolder{{Name: "bo", CompletionPercent: "100"}, {Name: "ana", CompletionPercent: "50"}}},
		)

		Convey("When fetching and printing the leaderboard", func() {
			players, err := listcheck.FetchLeaderboard(context.Background(), checkConfig(srv.URL), 0)
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(listcheck.WriteLeaderboard(&buf, players), ShouldBeNil)

			Convey("Then players are ordered by points", func() {
				So(len(players), ShouldEqual, 2)
				So(players[0].Name, ShouldEqual, "ana")
				So(buf.String(), ShouldContainSubstring, "PLAYER")
				So(buf.String(), ShouldContainSubstring, "ana")
			})
		})

		Convey("When the limit is above the service maximum", func() {
			_, err := listcheck.FetchLeaderboard(context.Background(), checkConfig(srv.URL), 100000)

			Convey("Then the request is rejected", func() {
				So(errors.Is(err, listcheck.ErrUnexpectedStatus), ShouldBeTrue)
			})
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a, b := listcheck.NewGenerator(7), listcheck.NewGenerator(7)

		Convey("Then they produce the same levels with unique titles", func() {
			first, second := a.Level(), a.Level()
			So(b.Level().Title, ShouldEqual, first.Title)
			So(first.Title, ShouldNotEqual, second.Title)
			So(a.Seed(), ShouldEqual, 7)
			for _, h := range first.RecordHolders {
				pct := scoring.ParseCompletion(string(h.CompletionPercent))
				So(pct, ShouldBeBetweenOrEqual, 40.0, 100.0)
			}
		})
	})
}
