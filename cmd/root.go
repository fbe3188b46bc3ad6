package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/config"
	"github.com/kozaktomas/pose-guard/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pose-guard",
	Short: "Face identity tracking and absence alerts for camera frames",
	Long: `Pose Guard follows enrolled people across camera frames, raises an alert
when one of them has been out of view for too long, watches for a single
fugitive face and can keep session identities for unknown visitors.

Frames come from an image directory (watch) or over HTTP (serve). Face
detection and embeddings are provided by an external embedding service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env POSEGUARD_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	if configPath == "" {
		configPath = os.Getenv("POSEGUARD_CONFIG")
	}
}

// loadConfig reads the configuration and builds the logger from it.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}
