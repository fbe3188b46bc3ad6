package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the guard over a directory of frames",
	Long: `Feed the image files of a directory, in filename order, through the guard
pipeline at a fixed rate and print alerts and log messages as they happen.

Examples:
  # Replay a recording with absence alerts
  pose-guard watch --frames ./recording --alert

  # Watch for a fugitive and track only two targets
  pose-guard watch --frames ./recording --fugitive "Mallory=./mallory.jpg" --select Ann,Bob`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("frames", "", "Directory with frame images (required)")
	watchCmd.Flags().Float64("fps", 10, "Frames per second to feed")
	watchCmd.Flags().Bool("alert", false, "Enable alert mode")
	watchCmd.Flags().Bool("pro", false, "Enable pro mode (re-identify unknown faces)")
	watchCmd.Flags().String("fugitive", "", "Fugitive as NAME=IMAGE_PATH")
	watchCmd.Flags().StringSlice("select", nil, "Track only these targets")
	watchCmd.Flags().String("out", "", "Write the last annotated frame to this file")
	watchCmd.Flags().Bool("bell", true, "Ring the terminal bell on alerts")
	_ = watchCmd.MarkFlagRequired("frames")
}

var frameExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// listFrames returns the image files in dir sorted by name.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// parseFugitiveFlag splits NAME=PATH.
func parseFugitiveFlag(v string) (string, string, error) {
	name, path, ok := strings.Cut(v, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return "", "", fmt.Errorf("invalid --fugitive %q, expected NAME=IMAGE_PATH", v)
	}
	return name, path, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fingerprint.DecodeImage(f)
}

func printEvents(events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Type {
		case pipeline.EventAlertRaised:
			fmt.Printf("[%s] ALERT  %s (frame %d)\n", ev.Time.Format("15:04:05"), ev.Message, ev.FrameNo)
		case pipeline.EventLogMessage, pipeline.EventOnboardingStep, pipeline.EventOnboardingFinished:
			fmt.Printf("[%s] %s\n", ev.Time.Format("15:04:05"), ev.Message)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	fps := mustGetFloat64(cmd, "fps")
	if fps <= 0 {
		return errors.New("--fps must be positive")
	}
	files, err := listFrames(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no frames found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruneSnapshots(cfg, logger)

	rt, err := newGuardRuntime(ctx, cfg, logger, mustGetBool(cmd, "bell"))
	if err != nil {
		return err
	}
	defer rt.Close()

	events := rt.service.Subscribe()
	printed := make(chan struct{})
	go func() {
		printEvents(events)
		close(printed)
	}()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- rt.run(workerCtx) }()
	defer func() {
		stopWorker()
		<-workerDone
		rt.service.Unsubscribe(events)
		<-printed
	}()

	if err := configureWatch(ctx, cmd, rt.service); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	for i, path := range files {
		if i > 0 {
			select {
			case <-ctx.Done():
				fmt.Println("\nInterrupted")
				return nil
			case <-ticker.C:
			}
		}
		img, err := loadImage(path)
		if err != nil {
			logger.Warn("skipping unreadable frame", zap.String("path", path), zap.Error(err))
			continue
		}
		rt.service.Submit(img)
	}

	// Commands queue behind frames, so this returns once every frame is handled.
	st, err := rt.service.Status(ctx)
	if err != nil {
		return err
	}
	printWatchSummary(rt.service.Stats(), st)

	if out := mustGetString(cmd, "out"); out != "" {
		if err := writeLatestFrame(rt.service, out); err != nil {
			return err
		}
		fmt.Printf("Last annotated frame written to %s\n", out)
	}
	return nil
}

// configureWatch applies mode, fugitive and selection flags on the worker.
func configureWatch(ctx context.Context, cmd *cobra.Command, svc *pipeline.Service) error {
	if mustGetBool(cmd, "alert") {
		if err := svc.SetAlertMode(ctx, true); err != nil {
			return err
		}
	}
	if mustGetBool(cmd, "pro") {
		if err := svc.SetProMode(ctx, true); err != nil {
			return err
		}
	}
	if v := mustGetString(cmd, "fugitive"); v != "" {
		name, path, err := parseFugitiveFlag(v)
		if err != nil {
			return err
		}
		img, err := loadImage(path)
		if err != nil {
			return fmt.Errorf("loading fugitive image: %w", err)
		}
		if err := svc.SetFugitive(ctx, name, img); err != nil {
			return fmt.Errorf("setting fugitive: %w", err)
		}
	}
	if names := mustGetStringSlice(cmd, "select"); len(names) > 0 {
		unknown, err := svc.SelectTargets(ctx, names)
		if err != nil {
			return err
		}
		for _, n := range unknown {
			fmt.Printf("Warning: unknown target %q\n", n)
		}
	}
	return nil
}

func printWatchSummary(stats pipeline.Stats, st pipeline.Status) {
	fmt.Println()
	fmt.Printf("Frames processed: %d, dropped: %d\n", stats.Processed, stats.Dropped)
	if st.ProMode {
		fmt.Printf("Session persons:  %d\n", st.Persons)
	}
	for _, t := range st.Targets {
		state := "absent"
		if t.Visible {
			state = fmt.Sprintf("visible (%.2f)", t.Confidence)
		}
		if !t.Selected {
			state = "not selected"
		}
		fmt.Printf("  %-20s %s\n", t.Name, state)
	}
}

func writeLatestFrame(svc *pipeline.Service, path string) error {
	frame := svc.LatestFrame()
	if frame == nil {
		return errors.New("no frame was processed")
	}
	data, err := fingerprint.EncodeJPEG(frame, constants.SnapshotJPEGQuality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
