package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/tokenkeeper/internal/control"
	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

var (
	refreshProvider string
	refreshUser     string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a one-shot refresh pass and exit",
	Long:  `Refreshes connections nearing expiry. With --user, refreshes that single identity regardless of expiry.`,
	Run:   runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshProvider, "provider", "", "restrict to a single provider")
	refreshCmd.Flags().StringVar(&refreshUser, "user", "", "refresh a single user's connection (requires --provider)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if refreshUser != "" && refreshProvider == "" {
		slog.Error("--user requires --provider")
		os.Exit(1)
	}

	app, err := control.NewKeeper(controlConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize Keeper", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(shutdownCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if refreshUser != "" {
		id := domain.Identity{UserID: refreshUser, Provider: refreshProvider}
		res, err := app.Orchestrator().RefreshWithBackoff(ctx, id, "")
		if err != nil {
			slog.Error("Refresh failed", "identity", id, "error", err)
			os.Exit(1)
		}
		slog.Info("Refresh finished",
			"identity", id,
			"status", res.Status,
			"attempts", res.Attempts,
			"latency", res.Latency)
		if !res.Succeeded() {
			os.Exit(1)
		}
		return
	}

	sum, err := app.Orchestrator().BulkRefresh(ctx, refreshProvider, app.BulkConfig())
	if err != nil {
		slog.Error("Bulk refresh failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Bulk refresh finished",
		"total", sum.Total,
		"successful", sum.Successful,
		"failed", sum.Failed,
		"skipped", sum.Skipped)
	for _, e := range sum.Errors {
		slog.Warn("Refresh error", "identity", e.Identity, "error", e.Message)
	}
}
