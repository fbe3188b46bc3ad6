package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

const finalPoseStep = 4

// posePrompts[i] is the prompt shown after pose step i+1 is captured.
var posePrompts = [...]string{"", "Right Hand", "Sit", "Stand"}

var (
	// ErrNoOnboarding is returned by a capture without an active onboarding session.
	ErrNoOnboarding = errors.New("no onboarding session active")
	// ErrFaceCount is returned when the face capture does not show exactly one face.
	ErrFaceCount = errors.New("exactly one face must be visible")
)

type onboardingSession struct {
	active bool
	step   int
	name   string
}

// StartOnboarding begins enrolling name, replacing any session in progress.
func (e *Engine) StartOnboarding(name string, now time.Time) error {
	if facematch.SafeName(name) == "" {
		return fmt.Errorf("invalid onboarding name %q", name)
	}
	e.onboarding = onboardingSession{active: true, name: name}
	e.emitLog("Onboarding started. Step 1: Face Capture", now)
	return nil
}

// CaptureOnboarding advances the onboarding session with frame.
// Step 0 needs exactly one face; its chip becomes the profile image and the roster is reloaded.
// Pose steps 1 to 4 are accepted as captured.
func (e *Engine) CaptureOnboarding(ctx context.Context, frame image.Image, now time.Time) error {
	if !e.onboarding.active {
		return ErrNoOnboarding
	}
	if !e.initialized {
		return ErrNotInitialized
	}

	if e.onboarding.step == 0 {
		return e.captureFace(ctx, frame, now)
	}

	e.onboarding.step++
	if e.onboarding.step > finalPoseStep {
		name := e.onboarding.name
		e.onboarding = onboardingSession{}
		e.emit(Event{Type: EventOnboardingFinished, Message: "Onboarding Finished: " + name}, now)
		return nil
	}

	step := e.onboarding.step
	e.emit(Event{Type: EventOnboardingStep, Step: step, Message: "Captured! Now: " + posePrompts[step-1]}, now)
	return nil
}

func (e *Engine) captureFace(ctx context.Context, frame image.Image, now time.Time) error {
	boxes, err := e.faces.Detect(ctx, frame)
	if err != nil {
		e.emitLog("Error: face detection failed.", now)
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(boxes) != 1 {
		e.emitLog("Error: Ensure exactly 1 face is visible.", now)
		return fmt.Errorf("%w: found %d", ErrFaceCount, len(boxes))
	}

	chip, err := fingerprint.CropChip(frame, boxes[0])
	if err != nil {
		e.emitLog("Error: Ensure exactly 1 face is visible.", now)
		return err
	}
	path, err := registry.SaveProfile(e.opts.ProfilesDir, e.onboarding.name, chip)
	if err != nil {
		e.emitLog("Warning: could not save profile: "+err.Error(), now)
		return err
	}
	e.logger.Info("profile saved", zap.String("name", e.onboarding.name), zap.String("path", path))

	if _, err := e.ReloadTargets(ctx, now); err != nil {
		e.logger.Warn("reload after face capture failed", zap.Error(err))
	}

	e.onboarding.step = 1
	e.emit(Event{Type: EventOnboardingStep, Step: 1, Message: "Face Captured! Now raise Left Hand."}, now)
	return nil
}
