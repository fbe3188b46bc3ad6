package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Start the pipeline worker behind an HTTP API.

Frames are posted to /api/v1/frames, modes, fugitive and onboarding are driven
through the control endpoints and events stream from /api/v1/events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("alert", false, "Start with alert mode on")
	serveCmd.Flags().Bool("pro", false, "Start with pro mode on")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruneSnapshots(cfg, logger)

	rt, err := newGuardRuntime(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(rt.service, cfg.Storage.ProfilesDir, host, port, logger)

	workerDone := make(chan error, 1)
	go func() { workerDone <- rt.run(ctx) }()

	if err := applyStartupModes(ctx, rt, mustGetBool(cmd, "alert"), mustGetBool(cmd, "pro")); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Pose Guard on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	stop()
	return <-workerDone
}

// applyStartupModes turns on the modes requested by flags once the worker runs.
func applyStartupModes(ctx context.Context, rt *guardRuntime, alert, pro bool) error {
	if alert {
		if err := rt.service.SetAlertMode(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("enabling alert mode: %w", err)
		}
	}
	if pro {
		if err := rt.service.SetProMode(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("enabling pro mode: %w", err)
		}
	}
	return nil
}
