package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/pose-guard/internal/database/postgres"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage enrolled target profiles",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled targets",
	Long: `List the profiles in the profiles directory.

With --verify every profile is sent through the embedding service, which
reports profiles that would be skipped on reload.`,
	RunE: runTargetsList,
}

var targetsEnrollCmd = &cobra.Command{
	Use:   "enroll NAME IMAGE",
	Short: "Enroll a target from a photo showing exactly one face",
	Args:  cobra.ExactArgs(2),
	RunE:  runTargetsEnroll,
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a target's profile files",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsRemove,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.AddCommand(targetsListCmd, targetsEnrollCmd, targetsRemoveCmd)

	targetsListCmd.Flags().Bool("verify", false, "Embed every profile to check it contains a face")
	targetsListCmd.Flags().Bool("json", false, "Output as JSON")
}

// TargetListEntry is one row of `targets list`.
type TargetListEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Valid *bool  `json:"valid,omitempty"`
}

func runTargetsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	jsonOutput := mustGetBool(cmd, "json")

	profiles, err := registry.ScanProfiles(cfg.Storage.ProfilesDir)
	if err != nil {
		return err
	}
	entries := make([]TargetListEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = TargetListEntry{Name: p.Name, Path: p.Path}
	}

	if mustGetBool(cmd, "verify") && len(profiles) > 0 {
		var bar *progressbar.ProgressBar
		if !jsonOutput {
			bar = progressbar.NewOptions(len(profiles),
				progressbar.OptionSetDescription("Verifying profiles"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("profiles"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		loader := &registry.Loader{
			Faces: fingerprint.NewClient(cfg.Embedding.URL, faceServiceTimeout),
			OnProgress: func(done, total int) {
				if bar != nil {
					_ = bar.Set(done)
				}
			},
		}
		res, err := loader.Load(context.Background(), cfg.Storage.ProfilesDir, time.Now())
		if err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Finish()
			fmt.Println()
		}

		loaded := make(map[string]bool, len(res.Targets))
		for _, t := range res.Targets {
			loaded[t.Name] = true
		}
		for i := range entries {
			valid := loaded[entries[i].Name]
			entries[i].Valid = &valid
		}
		if !jsonOutput {
			for _, w := range res.Warnings {
				fmt.Printf("Warning: %v\n", w)
			}
		}
	}

	if jsonOutput {
		return outputJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Printf("No targets enrolled in %s\n", cfg.Storage.ProfilesDir)
		return nil
	}
	for _, e := range entries {
		status := ""
		if e.Valid != nil && !*e.Valid {
			status = "  (no usable face)"
		}
		fmt.Printf("  %-20s %s%s\n", e.Name, e.Path, status)
	}
	fmt.Printf("\n%d target(s)\n", len(entries))
	return nil
}

func runTargetsEnroll(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	name, imagePath := args[0], args[1]

	img, err := loadImage(imagePath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	faces := fingerprint.NewClient(cfg.Embedding.URL, faceServiceTimeout)
	boxes, err := faces.Detect(context.Background(), img)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(boxes) != 1 {
		return fmt.Errorf("expected exactly 1 face, found %d", len(boxes))
	}

	chip, err := fingerprint.CropChip(img, boxes[0])
	if err != nil {
		return err
	}
	path, err := registry.SaveProfile(cfg.Storage.ProfilesDir, name, chip)
	if err != nil {
		return err
	}
	fmt.Printf("Enrolled %s -> %s\n", name, path)
	return nil
}

func runTargetsRemove(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	removed, err := registry.RemoveProfile(cfg.Storage.ProfilesDir, args[0])
	if errors.Is(err, registry.ErrProfileNotFound) {
		return fmt.Errorf("no profile found for %q", args[0])
	}
	if err != nil {
		return err
	}
	for _, p := range removed {
		fmt.Printf("Removed %s\n", p)
	}

	if cfg.Database.URL == "" {
		return nil
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return postgres.NewProfileEmbeddingCache(pool).Delete(ctx, args[0])
}
