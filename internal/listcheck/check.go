// Package listcheck drives a running level list service over HTTP and verifies
// that it keeps its ordering guarantees under random edits and concurrent reads.
package listcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ranking"
	"github.com/okian/demonlist/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Checker runs random edits against the service and compares every result with
// a local mirror of the list.
type Checker struct {
	cfg    Config
	client *Client
	gen    *Generator
	log    logger.Logger

	mirror     []model.Level
	reconciler *ranking.Reconciler
	stats      Stats
}

// NewChecker creates a checker for cfg.
func NewChecker(cfg Config) *Checker {
	return &Checker{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		gen:    NewGenerator(cfg.Seed),
		log:    logger.Get().Named("listcheck"),
	}
}

// Run performs the full check and returns its statistics.
func (c *Checker) Run(ctx context.Context) (Stats, error) {
	c.stats = Stats{StartTime: time.Now()}
	c.log.Info(ctx, "starting list check",
		logger.String("baseURL", c.cfg.BaseURL),
		logger.Int("operations", c.cfg.Operations),
		logger.Int("readers", c.cfg.Readers),
		logger.Any("seed", c.gen.Seed()))

	if err := c.client.Health(ctx); err != nil {
		return c.stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := c.authenticate(ctx); err != nil {
		return c.stats, err
	}
	if err := c.loadPolicy(ctx); err != nil {
		return c.stats, err
	}

	original, err := c.client.List(ctx)
	if err != nil {
		return c.stats, fmt.Errorf("fetch original list: %w", err)
	}
	c.mirror = model.CloneLevels(original)
	if c.cfg.Restore {
		defer c.restore(original)
	}

	if err := c.seed(ctx); err != nil {
		return c.stats, err
	}
	if err := c.checkIdempotency(ctx); err != nil {
		return c.stats, err
	}
	if err := c.checkSwapRoundTrip(ctx); err != nil {
		return c.stats, err
	}
	if err := c.runOperations(ctx); err != nil {
		return c.stats, err
	}
	if err := c.checkReadPurity(ctx); err != nil {
		return c.stats, err
	}

	c.stats.Duration = time.Since(c.stats.StartTime)
	c.log.Info(ctx, "list check passed",
		logger.Int("creates", c.stats.Creates),
		logger.Int("updates", c.stats.Updates),
		logger.Int("deletes", c.stats.Deletes),
		logger.Int("duplicates", c.stats.Duplicates),
		logger.Int("reads", c.stats.Reads),
		logger.Int("swapRoundTrips", c.stats.SwapRoundTrips),
		logger.Duration("duration", c.stats.Duration))
	return c.stats, nil
}

func (c *Checker) authenticate(ctx context.Context) error {
	if c.cfg.Token != "" {
		c.client.SetToken(c.cfg.Token)
		return nil
	}
	if c.cfg.Username == "" {
		return fmt.Errorf("a token or admin credentials are required")
	}
	return c.client.Login(ctx, c.cfg.Username, c.cfg.Password)
}

// loadPolicy mirrors the reorder policy the service reports in /stats.
func (c *Checker) loadPolicy(ctx context.Context) error {
	stats, err := c.client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	name, _ := stats["rankPolicy"].(string)
	policy, err := ranking.ParsePolicy(name)
	if err != nil {
		return fmt.Errorf("service reported policy %q: %w", name, err)
	}
	c.reconciler = ranking.NewReconciler(ranking.WithPolicy(policy))
	c.log.Info(ctx, "mirroring reorder policy", logger.String("policy", string(policy)))
	return nil
}

func (c *Checker) seed(ctx context.Context) error {
	for len(c.mirror) < c.cfg.SeedLevels {
		if err := c.create(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkIdempotency sends the same create twice with one key and expects a single level.
func (c *Checker) checkIdempotency(ctx context.Context) error {
	key := uuid.NewString()
	lvl := c.gen.Level()
	created, dup, err := c.client.Create(ctx, lvl, key)
	if err != nil {
		return fmt.Errorf("idempotent create: %w", err)
	}
	if dup {
		return fmt.Errorf("%w: fresh key %s reported as duplicate", ErrViolation, key)
	}
	c.mirror, _ = c.reconciler.Insert(c.mirror, created)
	c.stats.Creates++

	if _, dup, err = c.client.Create(ctx, lvl, key); err != nil {
		return fmt.Errorf("repeated create: %w", err)
	}
	if !dup {
		return fmt.Errorf("%w: repeated key %s created a second level", ErrViolation, key)
	}
	c.stats.Duplicates++
	return c.verify(ctx, "idempotent create")
}

// checkSwapRoundTrip moves a level away and back and expects the original order.
func (c *Checker) checkSwapRoundTrip(ctx context.Context) error {
	if c.reconciler.Policy() != ranking.PolicySwap || len(c.mirror) < 2 {
		return nil
	}
	before := titles(c.mirror)
	from, to := 1, len(c.mirror)
	if err := c.move(ctx, from, to); err != nil {
		return err
	}
	if err := c.move(ctx, to, from); err != nil {
		return err
	}
	if got := titles(c.mirror); !slices.Equal(got, before) {
		return fmt.Errorf("%w: swap round trip changed the order", ErrViolation)
	}
	c.stats.SwapRoundTrips++
	return nil
}

// runOperations interleaves random edits with concurrent readers. Readers only
// assert contiguity since they race the writer.
func (c *Checker) runOperations(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	reads := make([]int, c.cfg.Readers)

	for i := 0; i < c.cfg.Readers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-done:
					return nil
				case <-gctx.Done():
					return nil
				default:
				}
				levels, err := c.client.List(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("concurrent read: %w", err)
				}
				if err := ranking.Validate(levels); err != nil {
					return fmt.Errorf("%w: concurrent read saw %v", ErrViolation, err)
				}
				reads[i]++
			}
		})
	}

	g.Go(func() error {
		defer close(done)
		for i := 0; i < c.cfg.Operations; i++ {
			if err := c.randomOperation(gctx); err != nil {
				return fmt.Errorf("operation %d: %w", i+1, err)
			}
		}
		return nil
	})

	err := g.Wait()
	for _, n := range reads {
		c.stats.Reads += n
	}
	return err
}

func (c *Checker) randomOperation(ctx context.Context) error {
	n := len(c.mirror)
	switch op := c.gen.Intn(0, 9); {
	case n == 0 || op < 3:
		return c.create(ctx)
	case op < 5 && n > 1:
		return c.delete(ctx, c.gen.Intn(1, n))
	default:
		// Targets past the end exercise clamping.
		return c.move(ctx, c.gen.Intn(1, n), c.gen.Intn(1, n+2))
	}
}

func (c *Checker) create(ctx context.Context) error {
	created, _, err := c.client.Create(ctx, c.gen.Level(), "")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	var want model.Level
	c.mirror, want = c.reconciler.Insert(c.mirror, created)
	if created.Rank != want.Rank {
		return fmt.Errorf("%w: created level got rank %d, want %d", ErrViolation, created.Rank, want.Rank)
	}
	c.stats.Creates++
	return c.verify(ctx, "create")
}

func (c *Checker) move(ctx context.Context, from, to int) error {
	idx := ranking.IndexOf(c.mirror, from)
	lvl := c.mirror[idx].Clone()
	lvl.Rank = to
	updated, err := c.client.Update(ctx, from, lvl)
	if err != nil {
		return fmt.Errorf("move %d to %d: %w", from, to, err)
	}
	var final int
	c.mirror, final = c.reconciler.Move(c.mirror, from, to)
	if updated.Rank != final {
		return fmt.Errorf("%w: move %d to %d landed on %d, want %d", ErrViolation, from, to, updated.Rank, final)
	}
	c.stats.Updates++
	if c.cfg.Verbose {
		c.log.Debug(ctx, "moved level", logger.Int("from", from), logger.Int("to", to), logger.Int("final", final))
	}
	return c.verify(ctx, "move")
}

func (c *Checker) delete(ctx context.Context, rank int) error {
	removed, err := c.client.Delete(ctx, rank)
	if err != nil {
		return fmt.Errorf("delete %d: %w", rank, err)
	}
	var want model.Level
	c.mirror, want, _ = c.reconciler.Remove(c.mirror, rank)
	if removed.Title != want.Title {
		return fmt.Errorf("%w: delete %d removed %q, want %q", ErrViolation, rank, removed.Title, want.Title)
	}
	c.stats.Deletes++
	return c.verify(ctx, "delete")
}

// verify compares the served list with the mirror.
func (c *Checker) verify(ctx context.Context, step string) error {
	levels, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("list after %s: %w", step, err)
	}
	if err := ranking.Validate(levels); err != nil {
		return fmt.Errorf("%w: after %s: %v", ErrViolation, step, err)
	}
	if got, want := titles(levels), titles(c.mirror); !slices.Equal(got, want) {
		return fmt.Errorf("%w: after %s the order is %v, want %v", ErrViolation, step, got, want)
	}
	return nil
}

// checkReadPurity reads the leaderboard twice and expects neither it nor the list to change.
func (c *Checker) checkReadPurity(ctx context.Context) error {
	before, err := c.client.ListRaw(ctx)
	if err != nil {
		return err
	}
	first, err := c.client.Leaderboard(ctx, 0)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	second, err := c.client.Leaderboard(ctx, 0)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	after, err := c.client.ListRaw(ctx)
	if err != nil {
		return err
	}
	if !bytes.Equal(before, after) {
		return fmt.Errorf("%w: reading the leaderboard changed the list", ErrViolation)
	}
	if len(first) != len(second) {
		return fmt.Errorf("%w: leaderboard changed between reads", ErrViolation)
	}
	for i := range first {
		if first[i].Name != second[i].Name || first[i].TotalPoints != second[i].TotalPoints {
			return fmt.Errorf("%w: leaderboard changed between reads at position %d", ErrViolation, i+1)
		}
		if i > 0 && first[i].TotalPoints > first[i-1].TotalPoints {
			return fmt.Errorf("%w: leaderboard not sorted at position %d", ErrViolation, i+1)
		}
	}
	return nil
}

// restore puts the list back the way it was found. It runs on its own context so
// a cancelled check still cleans up. The snapshot comes from GET /api/levels,
// which lists record holders verified first, so stored holder order becomes that
// order. Every read already presents holders that way, so served responses are
// unchanged.
func (c *Checker) restore(original []model.Level) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	if _, err := c.client.Replace(ctx, original); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error(ctx, "failed to restore original list", logger.Error(err))
		return
	}
	c.log.Info(ctx, "original list restored", logger.Int("levels", len(original)))
}

func titles(levels []model.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Title
	}
	return out
}
