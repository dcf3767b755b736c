package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/tokenkeeper/internal/core/config"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/postgres"
)

var (
	statusProvider string
	statusUser     string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-identity token health",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusProvider, "provider", "", "restrict to a single provider")
	statusCmd.Flags().StringVar(&statusUser, "user", "", "restrict to a single user")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("status requires a configured database")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, provider, health_score, consecutive_failures, total_attempts, successful_attempts
		FROM health_metrics
		WHERE ($1 = '' OR provider = $1) AND ($2 = '' OR user_id = $2)
		ORDER BY health_score ASC`, statusProvider, statusUser)
	if err != nil {
		slog.Error("Failed to query health metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "USER\tPROVIDER\tSCORE\tCONSEC FAILS\tATTEMPTS\tSUCCESSES")

	for rows.Next() {
		var userID, prov string
		var score float64
		var consec, total, succ int
		if err := rows.Scan(&userID, &prov, &score, &consec, &total, &succ); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%d\t%d\n", userID, prov, score, consec, total, succ)
	}
	_ = w.Flush()
}
