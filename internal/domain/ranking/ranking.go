// Package ranking keeps level ranks unique and contiguous (exactly 1..N).
//
// Two reorder policies exist because earlier versions of the list disagreed:
//
//   - PolicySwap (default): moving a level onto an occupied rank swaps the two
//     levels. Only two records change and the move is undone by moving back.
//   - PolicyShift: the level is taken out and re-inserted at the new rank, so every
//     level between the old and the new position moves by one.
//
// Both keep the invariant; they are not interchangeable for users, so the active
// policy is a deployment decision (config key rank_policy).
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
)

// Policy selects how a rank change resolves a collision.
type Policy string

// Supported policies.
const (
	PolicySwap  Policy = "swap"
	PolicyShift Policy = "shift"
)

// ParsePolicy accepts "swap" or "shift" (case-insensitive). Empty means swap.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySwap:
		return PolicySwap, nil
	case PolicyShift:
		return PolicyShift, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithPolicy sets the reorder policy.
func WithPolicy(p Policy) Option {
	return func(r *Reconciler) {
		if p == PolicySwap || p == PolicyShift {
			r.policy = p
		}
	}
}

// Reconciler restores rank contiguity after inserts, moves and deletes.
// Methods take ownership of the slice they are given and may reorder it.
type Reconciler struct {
	policy Policy
}

// NewReconciler creates a reconciler using the swap policy unless configured otherwise.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{policy: PolicySwap}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy reports the active reorder policy.
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// NextRank returns the rank a newly created level receives.
func NextRank(levels []model.Level) int {
	highest := 0
	for _, l := range levels {
		if l.Rank > highest {
			highest = l.Rank
		}
	}
	return highest + 1
}

// Insert appends lvl at the bottom of the list.
func (r *Reconciler) Insert(levels []model.Level, lvl model.Level) ([]model.Level, model.Level) {
	lvl.Rank = NextRank(levels)
	return append(levels, lvl), lvl
}

// Move changes the rank of the level currently at from. The target is clamped into
// [1, N]. It returns the reordered levels and the rank the level ended on. The
// caller must have checked that from exists.
func (r *Reconciler) Move(levels []model.Level, from, to int) ([]model.Level, int) {
	n := len(levels)
	if n == 0 {
		return levels, from
	}
	to = clamp(to, 1, n)
	if to == from {
		return levels, from
	}
	if r.policy == PolicyShift {
		return shift(levels, from, to), to
	}
	return swap(levels, from, to), to
}

// Remove deletes the level at rank and renumbers the rest. ok is false when no level
// holds rank; levels are then returned unchanged.
func (r *Reconciler) Remove(levels []model.Level, rank int) ([]model.Level, model.Level, bool) {
	idx := IndexOf(levels, rank)
	if idx < 0 {
		return levels, model.Level{}, false
	}
	removed := levels[idx]
	levels = append(levels[:idx], levels[idx+1:]...)
	return Compact(levels), removed, true
}

// swap gives the occupant of to the old rank. Ranks stay contiguous, so no renumbering.
func swap(levels []model.Level, from, to int) []model.Level {
	moving := IndexOf(levels, from)
	if occupant := IndexOf(levels, to); occupant >= 0 {
		levels[occupant].Rank = from
	}
	levels[moving].Rank = to
	SortByRank(levels)
	return levels
}

func shift(levels []model.Level, from, to int) []model.Level {
	SortByRank(levels)
	idx := IndexOf(levels, from)
	moving := levels[idx]
	levels = append(levels[:idx], levels[idx+1:]...)

	pos := to - 1
	levels = append(levels, model.Level{})
	copy(levels[pos+1:], levels[pos:])
	levels[pos] = moving
	renumber(levels)
	return levels
}

// Compact sorts by rank (stable, so equal ranks keep their order) and renumbers 1..N.
func Compact(levels []model.Level) []model.Level {
	SortByRank(levels)
	renumber(levels)
	return levels
}

// Validate reports an error when ranks are not exactly 1..N.
func Validate(levels []model.Level) error {
	seen := make(map[int]struct{}, len(levels))
	for _, l := range levels {
		if l.Rank < 1 || l.Rank > len(levels) {
			return fmt.Errorf("%w: rank %d outside 1..%d", ErrNotContiguous, l.Rank, len(levels))
		}
		if _, dup := seen[l.Rank]; dup {
			return fmt.Errorf("%w: duplicate rank %d", ErrNotContiguous, l.Rank)
		}
		seen[l.Rank] = struct{}{}
	}
	return nil
}

// SortByRank orders levels ascending by rank, keeping the relative order of ties.
func SortByRank(levels []model.Level) {
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Rank < levels[j].Rank })
}

// IndexOf returns the slice index of the level holding rank, or -1.
func IndexOf(levels []model.Level, rank int) int {
	for i, l := range levels {
		if l.Rank == rank {
			return i
		}
	}
	return -1
}

func renumber(levels []model.Level) {
	for i := range levels {
		levels[i].Rank = i + 1
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
