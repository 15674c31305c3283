// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/dedupe"
	"github.com/okian/demonlist/internal/domain/levelstore"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ranking"
	"github.com/okian/demonlist/internal/domain/scoring"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

// Authorizer decides whether a credential may edit the list.
type Authorizer interface {
	IsAuthorized(ctx context.Context, credential string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, credential string) bool

// IsAuthorized calls f.
func (f AuthorizerFunc) IsAuthorized(ctx context.Context, credential string) bool {
	return f(ctx, credential)
}

// denyAll is used when no authorizer is configured: the list is read-only.
var denyAll = AuthorizerFunc(func(context.Context, string) bool { return false })

// Service implements the API dependencies for the level list.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *levelstore.Store
	scorer     *scoring.Scorer
	deduper    dedupe.Deduper
	authorizer Authorizer

	// Configuration
	persistence     levelstore.Persistence
	policy          ranking.Policy
	idempotencySize int
	scorerOpts      []scoring.Option

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPersistence sets the backend the level store loads from and saves to.
func WithPersistence(p levelstore.Persistence) Option {
	return func(s *Service) {
		if p != nil {
			s.persistence = p
		}
	}
}

// WithRankPolicy selects how rank collisions on edit are resolved.
func WithRankPolicy(p ranking.Policy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithScoring passes options to the scoring engine.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scorerOpts = append(s.scorerOpts, opts...)
	}
}

// WithAuthorizer sets the write gate.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) {
		if a != nil {
			s.authorizer = a
		}
	}
}

// WithIdempotencySize bounds the cache of create request keys.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service. Reads work immediately on an empty list;
// call Start to load the persisted collection.
func New(opts ...Option) *Service {
	s := &Service{
		policy:          ranking.PolicySwap,
		idempotencySize: dedupe.DefaultMaxSize,
		authorizer:      denyAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.persistence == nil {
		s.persistence = repository.NewMemoryStore()
	}

	s.scorer = scoring.NewScorer(s.scorerOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idempotencySize))
	s.store = levelstore.New(s.persistence,
		levelstore.WithReconciler(ranking.NewReconciler(ranking.WithPolicy(s.policy))),
	)
	return s
}

// Start loads the persisted collection.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting level service...")
	if err := s.store.Load(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	metrics.UpdateLevelCount(s.store.Count(ctx))

	s.started = true
	s.logger.Info(ctx, "level service started",
		logger.Int("levels", s.store.Count(ctx)),
		logger.String("policy", string(s.store.Policy())),
		logger.Int("idempotencySize", s.idempotencySize),
	)
	return nil
}

// Stop releases the persistence backend.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping level service...")
	if closer, ok := s.persistence.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "closing persistence failed", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "level service stopped")
}

// List returns every level ascending by rank.
func (s *Service) List(ctx context.Context) []model.Level {
	levels := s.store.List(ctx)
	for i := range levels {
		sortHolders(levels[i].RecordHolders)
	}
	return levels
}

// FilteredList returns the levels whose creator (case-insensitive) or rank
// text contains query. An empty query matches everything.
func (s *Service) FilteredList(ctx context.Context, query string) []model.Level {
	levels := s.List(ctx)
	if query == "" {
		return levels
	}
	q := strings.ToLower(query)
	out := make([]model.Level, 0, len(levels))
	for _, lvl := range levels {
		if strings.Contains(strings.ToLower(lvl.Creator), q) || strings.Contains(strconv.Itoa(lvl.Rank), q) {
			out = append(out, lvl)
		}
	}
	return out
}

// Get returns the level at rank.
func (s *Service) Get(ctx context.Context, rank int) (model.Level, error) {
	lvl, err := s.store.Get(ctx, rank)
	if err != nil {
		return model.Level{}, mapStoreError(err)
	}
	sortHolders(lvl.RecordHolders)
	return lvl, nil
}

// Create appends a level at the bottom of the list.
func (s *Service) Create(ctx context.Context, credential string, initial model.Level) (model.Level, error) {
	if err := s.authorize(ctx, credential, "create"); err != nil {
		return model.Level{}, err
	}
	return s.create(ctx, initial)
}

// CreateOnce is Create guarded by an idempotency key: a key already seen
// returns ErrDuplicate and creates nothing. A failed create forgets the key
// so the client can retry. An empty key behaves like Create.
func (s *Service) CreateOnce(ctx context.Context, credential, key string, initial model.Level) (model.Level, error) {
	if err := s.authorize(ctx, credential, "create"); err != nil {
		return model.Level{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return s.create(ctx, initial)
	}
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordDuplicateWrite()
		s.logger.Debug(ctx, "duplicate create skipped", logger.String("idempotencyKey", key))
		return model.Level{}, ErrDuplicate
	}
	lvl, err := s.create(ctx, initial)
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		return model.Level{}, err
	}
	return lvl, nil
}

func (s *Service) create(ctx context.Context, initial model.Level) (model.Level, error) {
	lvl, err := s.store.Create(ctx, initial)
	if err != nil {
		return model.Level{}, mapStoreError(err)
	}
	s.logger.Info(ctx, "level created", logger.Int("rank", lvl.Rank), logger.String("title", lvl.Title))
	return lvl, nil
}

// Update edits the level at rank. See levelstore.Store.Update.
func (s *Service) Update(ctx context.Context, credential string, rank int, changes model.LevelChanges) (model.Level, error) {
	if err := s.authorize(ctx, credential, "update"); err != nil {
		return model.Level{}, err
	}
	lvl, err := s.store.Update(ctx, rank, changes)
	if err != nil {
		return model.Level{}, mapStoreError(err)
	}
	s.logger.Info(ctx, "level updated", logger.Int("from", rank), logger.Int("rank", lvl.Rank))
	return lvl, nil
}

// Delete removes the level at rank and closes the gap.
func (s *Service) Delete(ctx context.Context, credential string, rank int) (model.Level, error) {
	if err := s.authorize(ctx, credential, "delete"); err != nil {
		return model.Level{}, err
	}
	lvl, err := s.store.Delete(ctx, rank)
	if err != nil {
		return model.Level{}, mapStoreError(err)
	}
	s.logger.Info(ctx, "level deleted", logger.Int("rank", rank), logger.String("title", lvl.Title))
	return lvl, nil
}

// Replace swaps in a whole new collection, renumbering it 1..N.
func (s *Service) Replace(ctx context.Context, credential string, levels []model.Level) ([]model.Level, error) {
	if err := s.authorize(ctx, credential, "replace"); err != nil {
		return nil, err
	}
	out, err := s.store.Replace(ctx, levels)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info(ctx, "levels replaced", logger.Int("levels", len(out)))
	return out, nil
}

// Leaderboard aggregates the current list into players, best first.
// limit <= 0 returns every player.
func (s *Service) Leaderboard(ctx context.Context, limit int) []model.Player {
	start := time.Now()
	players := s.scorer.Aggregate(s.store.List(ctx))
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Microseconds())/1000.0, len(players))
	if limit > 0 && limit < len(players) {
		players = players[:limit]
	}
	return players
}

// Player returns the leaderboard entry for name.
func (s *Service) Player(ctx context.Context, name string) (model.Player, error) {
	for _, p := range s.Leaderboard(ctx, 0) {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Player{}, fmt.Errorf("%w: player %q", ErrNotFound, name)
}

// PointsForRank exposes the scoring curve in use.
func (s *Service) PointsForRank(rank int) float64 {
	return s.scorer.PointsForRank(rank)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	levels := s.store.Count(ctx)
	metrics.UpdateLevelCount(levels)
	return map[string]interface{}{
		"started":         s.started,
		"levels":          levels,
		"rankPolicy":      string(s.store.Policy()),
		"idempotencyKeys": s.deduper.Size(),
		"idempotencySize": s.idempotencySize,
	}
}

// ParseRank converts a path segment into a rank.
func ParseRank(text string) (int, error) {
	rank, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || rank < 1 {
		return 0, fmt.Errorf("%w: rank must be a positive integer, got %q", ErrInvalidInput, text)
	}
	return rank, nil
}

// Authorize reports ErrForbidden unless credential may perform the write op.
// Transports call it before reading a request body so an unauthorized caller
// learns nothing about the body's validity.
func (s *Service) Authorize(ctx context.Context, credential, op string) error {
	return s.authorize(ctx, credential, op)
}

func (s *Service) authorize(ctx context.Context, credential, op string) error {
	if strings.TrimSpace(credential) != "" && s.authorizer.IsAuthorized(ctx, credential) {
		return nil
	}
	metrics.RecordWrite(op, "forbidden")
	s.logger.Warn(ctx, "write rejected: not authorized", logger.String("op", op))
	return ErrForbidden
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, levelstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, levelstore.ErrPersist):
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return err
}

// sortHolders orders record holders verified first, keeping insertion order
// within each group.
func sortHolders(holders []model.RecordHolder) {
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].Verified && !holders[j].Verified
	})
}
