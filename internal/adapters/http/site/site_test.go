package site

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a router with an API route and the site", t, func() {
		r := chi.NewRouter()
		r.Get("/api/levels", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		Register(r)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			return w
		}

		Convey("When requesting the root", func() {
			w := get("/")

			Convey("Then the index page is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "Demon List")
			})
		})

		Convey("When requesting assets", func() {
			js := get("/app.js")
			css := get("/style.css")

			Convey("Then they are served", func() {
				So(js.Code, ShouldEqual, http.StatusOK)
				So(js.Body.String(), ShouldContainSubstring, "/api/levels")
				So(css.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When requesting an unknown file", func() {
			Convey("Then 404 is returned", func() {
				So(get("/missing.png").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When requesting an API route", func() {
			Convey("Then the API handler wins", func() {
				So(get("/api/levels").Code, ShouldEqual, http.StatusTeapot)
			})
		})
	})
}

func TestSiteRegisterNilRouter(t *testing.T) {
	Convey("Given a nil router", t, func() {
		So(func() { Register(nil) }, ShouldPanic)
	})
}
