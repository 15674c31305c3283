// Package levelstore holds the ordered level collection and is the only place
// that changes rank assignments.
//
// Writers are serialised by a mutex held across copy, reconcile, persist and
// publish. Readers never lock: they load the last published snapshot, which is
// never mutated after publication. A failed save publishes nothing, so a rejected
// write leaves the collection exactly as it was.
package levelstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ranking"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

// Persistence loads and saves the whole collection.
type Persistence interface {
	Load(ctx context.Context) ([]model.Level, error)
	Save(ctx context.Context, levels []model.Level) error
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithReconciler sets the reconciler used for rank changes.
func WithReconciler(r *ranking.Reconciler) Option {
	return func(s *Store) {
		if r != nil {
			s.reconciler = r
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// snapshot is an immutable, rank-sorted view of the collection.
type snapshot struct {
	levels []model.Level
}

// Store is the authoritative level collection.
type Store struct {
	mu          sync.Mutex
	current     atomic.Pointer[snapshot]
	persistence Persistence
	reconciler  *ranking.Reconciler
	logger      logger.Logger
}

// New creates an empty store backed by p. Call Load to read persisted state.
func New(p Persistence, opts ...Option) *Store {
	s := &Store{
		persistence: p,
		reconciler:  ranking.NewReconciler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("levelstore")
	}
	s.current.Store(&snapshot{levels: []model.Level{}})
	return s
}

// Load replaces the in-memory collection with the persisted one. Stored data whose
// ranks are not exactly 1..N is compacted; the repaired collection is published
// but only written back on the next mutation.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	levels, err := s.persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	levels = model.CloneLevels(levels)
	if err := ranking.Validate(levels); err != nil {
		s.logger.Warn(ctx, "stored ranks repaired on load", logger.Error(err), logger.Int("levels", len(levels)))
		levels = ranking.Compact(levels)
	} else {
		ranking.SortByRank(levels)
	}
	s.publish(levels)
	s.logger.Info(ctx, "levels loaded", logger.Int("levels", len(levels)))
	return nil
}

// List returns all levels ascending by rank. The result is a private copy.
func (s *Store) List(_ context.Context) []model.Level {
	return model.CloneLevels(s.current.Load().levels)
}

// Count returns the number of levels.
func (s *Store) Count(_ context.Context) int {
	return len(s.current.Load().levels)
}

// Policy reports the reorder policy in use.
func (s *Store) Policy() ranking.Policy {
	return s.reconciler.Policy()
}

// Get returns the level at rank.
func (s *Store) Get(_ context.Context, rank int) (model.Level, error) {
	levels := s.current.Load().levels
	idx := ranking.IndexOf(levels, rank)
	if idx < 0 {
		return model.Level{}, fmt.Errorf("%w: rank %d", ErrNotFound, rank)
	}
	return levels[idx].Clone(), nil
}

// Create appends a level at the bottom of the list. Any rank on initial is ignored.
func (s *Store) Create(ctx context.Context, initial model.Level) (model.Level, error) {
	var created model.Level
	err := s.mutate(ctx, "create", func(levels []model.Level) ([]model.Level, error) {
		initial = initial.Clone()
		if initial.RecordHolders == nil {
			initial.RecordHolders = []model.RecordHolder{}
		}
		var out []model.Level
		out, created = s.reconciler.Insert(levels, initial)
		metrics.RecordReconciliation("insert")
		return out, nil
	})
	if err != nil {
		return model.Level{}, err
	}
	return created.Clone(), nil
}

// Update edits the level currently at rank. Title, creator, video and record holders
// are replaced; a non-nil changes.Rank moves the level through the reconciler.
func (s *Store) Update(ctx context.Context, rank int, changes model.LevelChanges) (model.Level, error) {
	var updated model.Level
	err := s.mutate(ctx, "update", func(levels []model.Level) ([]model.Level, error) {
		idx := ranking.IndexOf(levels, rank)
		if idx < 0 {
			return nil, fmt.Errorf("%w: rank %d", ErrNotFound, rank)
		}
		holders := make([]model.RecordHolder, len(changes.RecordHolders))
		copy(holders, changes.RecordHolders)

		levels[idx].Title = changes.Title
		levels[idx].Creator = changes.Creator
		levels[idx].VideoRef = changes.VideoRef
		levels[idx].RecordHolders = holders

		final := rank
		if changes.Rank != nil && *changes.Rank != rank {
			levels, final = s.reconciler.Move(levels, rank, *changes.Rank)
			metrics.RecordReconciliation(string(s.reconciler.Policy()))
		}
		updated = levels[ranking.IndexOf(levels, final)]
		return levels, nil
	})
	if err != nil {
		return model.Level{}, err
	}
	return updated.Clone(), nil
}

// Delete removes the level at rank and closes the gap.
func (s *Store) Delete(ctx context.Context, rank int) (model.Level, error) {
	var removed model.Level
	err := s.mutate(ctx, "delete", func(levels []model.Level) ([]model.Level, error) {
		out, lvl, ok := s.reconciler.Remove(levels, rank)
		if !ok {
			return nil, fmt.Errorf("%w: rank %d", ErrNotFound, rank)
		}
		removed = lvl
		metrics.RecordReconciliation("compact")
		return out, nil
	})
	if err != nil {
		return model.Level{}, err
	}
	return removed, nil
}

// Replace swaps in a whole new collection. Ranks are normalised: levels are ordered
// by their supplied rank (ties keep input order) and renumbered 1..N.
func (s *Store) Replace(ctx context.Context, levels []model.Level) ([]model.Level, error) {
	var out []model.Level
	err := s.mutate(ctx, "replace", func(_ []model.Level) ([]model.Level, error) {
		out = ranking.Compact(model.CloneLevels(levels))
		for i := range out {
			if out[i].RecordHolders == nil {
				out[i].RecordHolders = []model.RecordHolder{}
			}
		}
		metrics.RecordReconciliation("compact")
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return model.CloneLevels(out), nil
}

// mutate runs fn on a private copy of the collection, persists the result and
// publishes it. Nothing is published when fn or the save fails.
func (s *Store) mutate(ctx context.Context, op string, fn func([]model.Level) ([]model.Level, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	next, err := fn(model.CloneLevels(s.current.Load().levels))
	if err != nil {
		metrics.RecordWrite(op, "rejected")
		return err
	}
	if err := s.persistence.Save(ctx, next); err != nil {
		metrics.RecordWrite(op, "persist_error")
		metrics.RecordErrorByComponent("levelstore", "persist_error")
		metrics.RecordErrorByType("persist_error", "high")
		metrics.RecordErrorLatency("levelstore", "persist_error", float64(time.Since(start).Microseconds())/1000)
		s.logger.Error(ctx, "persisting levels failed", logger.String("op", op), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.publish(next)

	metrics.RecordWrite(op, "ok")
	metrics.RecordWriteLatency(op, float64(time.Since(start).Microseconds())/1000)
	s.logger.Debug(ctx, "levels updated", logger.String("op", op), logger.Int("levels", len(next)))
	return nil
}

func (s *Store) publish(levels []model.Level) {
	s.current.Store(&snapshot{levels: levels})
	metrics.UpdateLevelCount(len(levels))
}
