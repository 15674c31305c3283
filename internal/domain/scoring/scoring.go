// Package scoring computes level points and the derived player leaderboard.
//
// Everything here is pure: malformed completion values degrade to zero instead of
// failing, so the public leaderboard always renders from imperfect stored data.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultBasePoints = 150.0
	DefaultDecay      = 0.95
	maxCompletion     = 100.0
	unknownPlayer     = "Unknown"
)

var completionPattern = regexp.MustCompile(`^(\d+(\.\d+)?)\s*%?$`)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBasePoints sets the points awarded for rank 1.
func WithBasePoints(points float64) Option {
	return func(s *Scorer) {
		if points > 0 {
			s.basePoints = points
		}
	}
}

// WithDecay sets the per-rank multiplier. Values outside (0, 1) are ignored so
// points always strictly decrease with rank.
func WithDecay(decay float64) Option {
	return func(s *Scorer) {
		if decay > 0 && decay < 1 {
			s.decay = decay
		}
	}
}

// Scorer maps ranks to points and builds leaderboards.
type Scorer struct {
	basePoints float64
	decay      float64
}

// NewScorer creates a scorer with the list's standard curve (150 * 0.95^(rank-1)).
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		basePoints: DefaultBasePoints,
		decay:      DefaultDecay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PointsForRank returns basePoints * decay^(rank-1). Ranks below 1 score as rank 1.
func (s *Scorer) PointsForRank(rank int) float64 {
	if rank < 1 {
		rank = 1
	}
	return s.basePoints * math.Pow(s.decay, float64(rank-1))
}

// PointsForRank uses the default curve.
func PointsForRank(rank int) float64 {
	return NewScorer().PointsForRank(rank)
}

// ParseCompletion converts "57", "57%", "45.5 %" into a percentage in [0, 100].
// Anything else is 0.
func ParseCompletion(raw string) float64 {
	m := completionPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return math.Min(v, maxCompletion)
}

// Aggregate credits every record holder of every level with
// (completion/100) * PointsForRank(level.Rank) and returns players sorted by total
// points, highest first. Ties keep the order in which names were first seen while
// walking levels in the given order.
func (s *Scorer) Aggregate(levels []model.Level) []model.Player {
	index := make(map[string]int)
	players := make([]model.Player, 0)

	for _, level := range levels {
		pts := s.PointsForRank(level.Rank)
		for _, holder := range level.RecordHolders {
			name := holder.Name
			if name == "" {
				name = unknownPlayer
			}
			percent := ParseCompletion(string(holder.CompletionPercent))

			i, ok := index[name]
			if !ok {
				i = len(players)
				index[name] = i
				players = append(players, model.Player{Name: name, Records: []model.PlayerRecord{}})
			}
			players[i].TotalPoints += (percent / maxCompletion) * pts
			players[i].Records = append(players[i].Records, model.PlayerRecord{
				Rank:    level.Rank,
				Title:   level.Title,
				Percent: percent,
			})
		}
	}

	sort.SliceStable(players, func(a, b int) bool {
		return players[a].TotalPoints > players[b].TotalPoints
	})
	for i := range players {
		players[i].Position = i + 1
	}
	return players
}
