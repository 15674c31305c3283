// Package site serves the embedded browser front-end: the level list, the
// leaderboard and the admin edit form.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts the site as the catch-all route of r. API routes must be
// registered on r as well; chi matches them first.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Handle("/*", Handler())
}

// Handler serves the embedded static files.
func Handler() http.Handler {
	return http.FileServer(FS())
}
