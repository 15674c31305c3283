package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleLevels() []model.Level {
	return []model.Level{
		{Rank: 1, Title: "Tartarus", Creator: "Riot", VideoRef: "abc123", RecordHolders: []model.RecordHolder{
			{Name: "Zoink", CompletionPercent: "100%", Verified: true},
			{Name: "Trick", CompletionPercent: "57", Verified: false},
		}},
		{Rank: 2, Title: "Acheron", Creator: "ryamu", RecordHolders: []model.RecordHolder{}},
	}
}

type namedStore struct {
	name  string
	store repository.Store
}

// backends returns one instance of every driver rooted in dir.
func backends(ctx context.Context, dir string) []namedStore {
	file, err := repository.NewFileStore(filepath.Join(dir, "levels.json"))
	So(err, ShouldBeNil)
	sqlite, err := repository.OpenSQLite(ctx, filepath.Join(dir, "levels.db"))
	So(err, ShouldBeNil)
	return []namedStore{
		{name: repository.DriverMemory, store: repository.NewMemoryStore()},
		{name: repository.DriverFile, store: file},
		{name: repository.DriverSQLite, store: sqlite},
	}
}

func TestStores_RoundTrip(t *testing.T) {
	Convey("Given every storage backend", t, func() {
		ctx := context.Background()
		stores := backends(ctx, t.TempDir())
		defer func() {
			for _, s := range stores {
				_ = s.store.Close()
			}
		}()

		for _, ns := range stores {
			name, store := ns.name, ns.store
			Convey("When the "+name+" backend is empty", func() {
				levels, err := store.Load(ctx)

				Convey("Then it loads an empty collection", func() {
					So(err, ShouldBeNil)
					So(levels, ShouldNotBeNil)
					So(levels, ShouldBeEmpty)
				})
			})

			Convey("When the "+name+" backend saves and reloads", func() {
				So(store.Save(ctx, sampleLevels()), ShouldBeNil)
				levels, err := store.Load(ctx)

				Convey("Then the collection is unchanged", func() {
					So(err, ShouldBeNil)
					So(cmp.Diff(sampleLevels(), levels), ShouldBeEmpty)
				})

				Convey("And a second save fully replaces the first", func() {
					So(store.Save(ctx, sampleLevels()[1:]), ShouldBeNil)
					levels, err := store.Load(ctx)
					So(err, ShouldBeNil)
					So(len(levels), ShouldEqual, 1)
					So(levels[0].Title, ShouldEqual, "Acheron")
				})
			})
		}
	})
}

func TestFileStore_Format(t *testing.T) {
	Convey("Given a file store", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "data", "levels.json")
		store, err := repository.NewFileStore(path)
		So(err, ShouldBeNil)

		Convey("When saving", func() {
			So(store.Save(ctx, sampleLevels()[1:]), ShouldBeNil)
			data, err := os.ReadFile(path)

			Convey("Then the document is indented JSON and no temp file is left", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldStartWith, "[\n  {\n    \"rank\": 1,")
				entries, err := os.ReadDir(filepath.Dir(path))
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When the document uses the legacy field names", func() {
			legacy := `[{"rank":1,"title":"Bloodbath","creator":"Riot","youtube":"xyz",
				"recordHolders":[{"name":"Npesta","percent":100,"verified":true}]}]`
			So(os.MkdirAll(filepath.Dir(path), 0o750), ShouldBeNil)
			So(os.WriteFile(path, []byte(legacy), 0o600), ShouldBeNil)
			levels, err := store.Load(ctx)

			Convey("Then they are mapped to the current fields", func() {
				So(err, ShouldBeNil)
				So(levels[0].VideoRef, ShouldEqual, "xyz")
				So(levels[0].RecordHolders[0].CompletionPercent, ShouldEqual, model.Completion("100"))
			})
		})

		Convey("When the document is not JSON", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o750), ShouldBeNil)
			So(os.WriteFile(path, []byte("{oops"), 0o600), ShouldBeNil)
			_, err := store.Load(ctx)

			Convey("Then a corrupt error is returned", func() {
				So(errors.Is(err, repository.ErrCorrupt), ShouldBeTrue)
			})
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given the backend factory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		Convey("When the driver is known", func() {
			mem, errMem := repository.Open(ctx, "memory", "")
			file, errFile := repository.Open(ctx, "file", filepath.Join(dir, "l.json"))
			db, errDB := repository.Open(ctx, "SQLite", filepath.Join(dir, "l.db"))

			Convey("Then the matching store is returned", func() {
				So(errMem, ShouldBeNil)
				So(errFile, ShouldBeNil)
				So(errDB, ShouldBeNil)
				So(mem, ShouldHaveSameTypeAs, &repository.MemoryStore{})
				So(file, ShouldHaveSameTypeAs, &repository.FileStore{})
				So(db, ShouldHaveSameTypeAs, &repository.SQLiteStore{})
				So(db.Close(), ShouldBeNil)
			})
		})

		Convey("When the driver is unknown or the path missing", func() {
			_, errDriver := repository.Open(ctx, "redis", "x")
			_, errPath := repository.Open(ctx, "file", " ")

			Convey("Then the errors say so", func() {
				So(errors.Is(errDriver, repository.ErrUnknownDriver), ShouldBeTrue)
				So(errors.Is(errPath, repository.ErrMissingPath), ShouldBeTrue)
			})
		})
	})
}
