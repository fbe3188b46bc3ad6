package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/pose-guard/internal/database/postgres"
	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

var identifyCmd = &cobra.Command{
	Use:   "identify IMAGE",
	Short: "Identify the faces in an image against the enrolled targets",
	Long: `Detect every face in IMAGE and list the closest enrolled targets for each.
A candidate closer than the configured tolerance is marked as a match.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("k", 3, "Number of candidates per face")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentifiedFace is one detected face with its nearest targets.
type IdentifiedFace struct {
	Box        facematch.Box    `json:"box"`
	Candidates []registry.Match `json:"candidates"`
	Match      string           `json:"match,omitempty"`
	// StoreMatch is the nearest profile in the Postgres embedding cache, when configured.
	StoreMatch *registry.Match `json:"store_match,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := context.Background()

	img, err := loadImage(args[0])
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	faces := fingerprint.NewClient(cfg.Embedding.URL, faceServiceTimeout)
	loader := &registry.Loader{Faces: faces}

	var store *postgres.ProfileEmbeddingCache
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewProfileEmbeddingCache(pool)
		loader.Cache = store
	}
	res, err := loader.Load(ctx, cfg.Storage.ProfilesDir, time.Now())
	if err != nil {
		return err
	}
	index := registry.NewIndex(cfg.Guard.DistanceMetric, res.Targets)

	boxes, err := faces.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}

	var out []IdentifiedFace
	for _, box := range boxes {
		emb, err := faces.Embed(ctx, img, box)
		if err != nil {
			return fmt.Errorf("embedding face at %v: %w", box, err)
		}
		face := IdentifiedFace{Box: box, Candidates: index.Nearest(emb, mustGetInt(cmd, "k"))}
		if len(face.Candidates) > 0 && face.Candidates[0].Distance < cfg.Guard.Tolerance {
			face.Match = face.Candidates[0].Name
		}
		if store != nil {
			name, dist, err := store.Nearest(ctx, emb)
			if err != nil {
				return err
			}
			if name != "" {
				face.StoreMatch = &registry.Match{Name: name, Distance: dist}
			}
		}
		out = append(out, face)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}
	fmt.Printf("%d target(s) indexed, %d face(s) found\n", index.Len(), len(out))
	for i, f := range out {
		label := "unknown"
		if f.Match != "" {
			label = f.Match
		}
		fmt.Printf("\nFace %d at (%d,%d %dx%d): %s\n", i+1, f.Box.X, f.Box.Y, f.Box.W, f.Box.H, label)
		for _, c := range f.Candidates {
			fmt.Printf("  %-20s distance %.4f  confidence %.2f\n", c.Name, c.Distance, facematch.Confidence(c.Distance))
		}
		if f.StoreMatch != nil {
			fmt.Printf("  store: %s (distance %.4f)\n", f.StoreMatch.Name, f.StoreMatch.Distance)
		}
	}
	return nil
}
