package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/pose-guard/internal/database/postgres"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent guard events from the Postgres event store",
	Long: `Show the most recent event log records stored in PostgreSQL.

Requires DATABASE_URL (or database.url in the config file).

Examples:
  pose-guard history --limit 20
  pose-guard history --status ALERT_TIMEOUT,ALERT`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 50, "Maximum number of records")
	historyCmd.Flags().StringSlice("status", nil, "Only records with these statuses")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := postgres.NewEventRepository(pool).Recent(ctx, mustGetInt(cmd, "limit"), mustGetStringSlice(cmd, "status"))
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-14s %-20s %-9s %.4f  %s\n",
			r.Time.Local().Format("2006-01-02 15:04:05"), r.Status, r.Name, r.Action, r.Confidence, r.ImagePath)
	}
	return nil
}
