package listcheck

import (
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/okian/demonlist/internal/domain/model"
)

const (
	videoRefLength = 11
	maxHolders     = 4
	minCompletion  = 40
)

// Generator produces plausible random levels.
type Generator struct {
	faker *gofakeit.Faker
	seed  int64
	next  int
}

// NewGenerator creates a generator. A zero seed is replaced by the current time.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{faker: gofakeit.New(uint64(seed)), seed: seed}
}

// Seed reports the seed in use so a failing run can be repeated.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Level returns a new level. Titles carry a counter so they stay unique within a run.
func (g *Generator) Level() model.Level {
	g.next++
	f := g.faker
	title := strings.TrimSpace(f.Adjective()+" "+f.Noun()) + " " + strconv.Itoa(g.next)

	holders := make([]model.RecordHolder, f.Number(0, maxHolders))
	for i := range holders {
		holders[i] = model.RecordHolder{
			Name:              f.Username(),
			CompletionPercent: g.completion(),
			Verified:          f.Bool(),
		}
	}
	return model.Level{
		Title:         title,
		Creator:       f.Username(),
		VideoRef:      f.Password(true, true, true, false, false, videoRefLength),
		RecordHolders: holders,
	}
}

// Intn returns a random int in [lo, hi].
func (g *Generator) Intn(lo, hi int) int {
	return g.faker.Number(lo, hi)
}

// completion mixes the textual forms the list accepts.
func (g *Generator) completion() model.Completion {
	pct := g.faker.Number(minCompletion, 100)
	switch g.faker.Number(0, 2) {
	case 0:
		return model.Completion(strconv.Itoa(pct) + "%")
	case 1:
		return model.Completion(strconv.Itoa(pct) + ".5")
	default:
		return model.Completion(strconv.Itoa(pct))
	}
}
