// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/demonlist/internal/app"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// LevelService is the read/write surface over the level list.
type LevelService interface {
	FilteredList(ctx context.Context, query string) []model.Level
	Get(ctx context.Context, rank int) (model.Level, error)
	Create(ctx context.Context, credential string, initial model.Level) (model.Level, error)
	CreateOnce(ctx context.Context, credential, key string, initial model.Level) (model.Level, error)
	Update(ctx context.Context, credential string, rank int, changes model.LevelChanges) (model.Level, error)
	Delete(ctx context.Context, credential string, rank int) (model.Level, error)
	Replace(ctx context.Context, credential string, levels []model.Level) ([]model.Level, error)
	PointsForRank(rank int) float64
	Authorize(ctx context.Context, credential, op string) error
}

// LeaderboardService exposes the derived player ranking.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, limit int) []model.Player
	Player(ctx context.Context, name string) (model.Player, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LevelService
	LeaderboardService
	StatsProvider
}

// Authenticator exchanges admin credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// LoginLimiter throttles login attempts per client.
type LoginLimiter interface {
	Allow(client string) bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	levelsHandler      *LevelsHandler
	leaderboardHandler *LeaderboardHandler
	loginHandler       *LoginHandler
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxLimit int
	auth     Authenticator
	limiter  LoginLimiter
	log      logger.Logger
}

// WithMaxLeaderboardLimit caps GET /api/leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithAuthenticator enables POST /api/login.
func WithAuthenticator(a Authenticator) Option {
	return func(o *serverOptions) { o.auth = a }
}

// WithLoginLimiter throttles POST /api/login.
func WithLoginLimiter(l LoginLimiter) Option {
	return func(o *serverOptions) { o.limiter = l }
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxLimit: 100}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		levelsHandler:      NewLevelsHandler(deps, o.log),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit),
		loginHandler:       NewLoginHandler(o.auth, o.limiter),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/levels", MetricsMiddleware(s.levelsHandler.HandleList, "levels"))
		r.Post("/levels", MetricsMiddleware(s.levelsHandler.HandleCreate, "levels"))
		r.Put("/levels", MetricsMiddleware(s.levelsHandler.HandleReplace, "levels"))
		r.Get("/levels/{rank}", MetricsMiddleware(s.levelsHandler.HandleGet, "level"))
		r.Put("/levels/{rank}", MetricsMiddleware(s.levelsHandler.HandleUpdate, "level"))
		r.Delete("/levels/{rank}", MetricsMiddleware(s.levelsHandler.HandleDelete, "level"))
		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/players/{name}", MetricsMiddleware(s.leaderboardHandler.HandleGetPlayer, "player"))
		r.Post("/login", MetricsMiddleware(s.loginHandler.HandleLogin, "login"))
	})
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service sentinels into HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", Wrap(op, err))
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// clientIP returns the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
