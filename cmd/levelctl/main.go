// Command levelctl is the operator tool for a running level list: it checks the
// service's ordering guarantees, imports level files and prints the leaderboard.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/demonlist/internal/adapters/auth"
	"github.com/okian/demonlist/internal/listcheck"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags bind to a fresh config each call.
func newRootCmd() *cobra.Command {
	cfg := listcheck.DefaultConfig()
	var (
		verbose   bool
		logFormat string
	)

	root := &cobra.Command{
		Use:           "levelctl",
		Short:         "Operate a running level list service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if cfg.Token == "" {
				cfg.Token = os.Getenv("DEMONLIST_TOKEN")
			}
			if verbose {
				cfg.Verbose = true
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	pf.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	pf.StringVar(&cfg.Token, "token", "", "bearer token (default $DEMONLIST_TOKEN)")
	pf.StringVar(&cfg.Username, "username", "", "admin username used to log in")
	pf.StringVar(&cfg.Password, "password", "", "admin password used to log in")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newCheckCmd(&cfg),
		newImportCmd(&cfg),
		newLeaderboardCmd(&cfg),
		newHashPasswordCmd(),
	)
	return root
}

func newCheckCmd(cfg *listcheck.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run random edits against the service and verify the list stays consistent",
		Long: `Creates, moves and deletes levels at random while concurrent readers poll
the list. After every edit the served list is compared with a local mirror that
applies the service's reorder policy. The original list is restored at the end
unless --restore=false is given. Restoring writes record holders in the order the
API serves them (verified first), which may differ from the stored order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := listcheck.NewChecker(*cfg).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d creates, %d updates, %d deletes, %d reads in %s\n",
				stats.Creates, stats.Updates, stats.Deletes, stats.Reads, stats.Duration)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Operations, "operations", cfg.Operations, "number of random edits")
	f.IntVar(&cfg.SeedLevels, "seed-levels", cfg.SeedLevels, "levels created first when the list is smaller")
	f.IntVar(&cfg.Readers, "readers", cfg.Readers, "concurrent readers")
	f.Int64Var(&cfg.Seed, "seed", 0, "generator seed (0 picks one)")
	f.BoolVar(&cfg.Restore, "restore", cfg.Restore, "restore the original list when done")
	return cmd
}

func newImportCmd(cfg *listcheck.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the list with the levels in a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			levels, err := listcheck.Import(cmd.Context(), *cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d levels\n", len(levels))
			return nil
		},
	}
}

func newLeaderboardCmd(cfg *listcheck.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the player leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			players, err := listcheck.FetchLeaderboard(cmd.Context(), *cfg, limit)
			if err != nil {
				return err
			}
			return listcheck.WriteLeaderboard(cmd.OutOrStdout(), players)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of players to show (0 shows all)")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Print the bcrypt hash for DEMONLIST_ADMIN_PASSWORD_HASH",
		Long:  "Hashes the argument, or the first line of standard input when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func passwordArg(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}
