package listcheck

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/demonlist/internal/domain/model"
)

// FetchLeaderboard returns the remote leaderboard; limit 0 returns every player.
func FetchLeaderboard(ctx context.Context, cfg Config, limit int) ([]model.Player, error) {
	return NewClient(cfg.BaseURL, cfg.Timeout).Leaderboard(ctx, limit)
}

// WriteLeaderboard prints players as an aligned table.
func WriteLeaderboard(w io.Writer, players []model.Player) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tPOINTS\tRECORDS")
	for _, p := range players {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\n", p.Position, p.Name, p.TotalPoints, len(p.Records))
	}
	return tw.Flush()
}
