package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/pose-guard/internal/sink"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage alert snapshots",
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than the retention period",
	RunE:  runSnapshotsPrune,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)

	snapshotsPruneCmd.Flags().Int("days", 0, "Retention in days (defaults to storage.snapshot_retention_days)")
}

func runSnapshotsPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	days := mustGetInt(cmd, "days")
	if days == 0 {
		days = cfg.Storage.SnapshotRetentionDays
	}
	if days <= 0 {
		return errors.New("retention must be positive")
	}

	n, err := sink.PruneSnapshots(cfg.Storage.SnapshotsDir, time.Duration(days)*24*time.Hour, time.Now())
	fmt.Printf("Removed %d snapshot(s) older than %d day(s) from %s\n", n, days, cfg.Storage.SnapshotsDir)
	return err
}
