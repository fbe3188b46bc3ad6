// Package pipeline is the identity tracking and alert engine.
//
// An Engine processes one frame at a time: fugitive watch, then either a full
// re-detection cycle or a tracker update, overlap resolution and the per-target
// alert state machine. It is not safe for concurrent use; Service serializes all
// access through a single worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/config"
	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/registry"
	"github.com/kozaktomas/pose-guard/internal/sink"
	"github.com/kozaktomas/pose-guard/internal/tracking"
)

// ErrNotInitialized is returned by operations that need the face service before it is ready.
var ErrNotInitialized = errors.New("engine not initialized")

// Options are the session-constant engine settings.
type Options struct {
	Tolerance        float64
	AlertInterval    time.Duration
	RedetectInterval int
	Distance         facematch.DistanceFunc
	ProfilesDir      string
}

// OptionsFromConfig derives engine options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Tolerance:        cfg.Guard.Tolerance,
		AlertInterval:    cfg.Guard.AlertIntervalDuration(),
		RedetectInterval: cfg.Guard.RedetectInterval,
		Distance:         facematch.DistanceFor(cfg.Guard.DistanceMetric),
		ProfilesDir:      cfg.Storage.ProfilesDir,
	}
}

// Pinger is implemented by face services that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the engine's collaborators. Faces is required; the rest default to no-ops.
type Deps struct {
	Faces      fingerprint.FaceService
	Trackers   tracking.Factory
	Cache      registry.EmbeddingCache
	Log        sink.LogSink
	Snapshots  sink.SnapshotSink
	Alarm      Alarm
	Classifier ActionClassifier
	Emitter    Emitter
	Logger     *zap.Logger
}

// Engine owns the registry and all per-frame state.
type Engine struct {
	opts       Options
	faces      fingerprint.FaceService
	newTracker tracking.Factory
	loader     *registry.Loader
	log        sink.LogSink
	snapshots  sink.SnapshotSink
	alarm      Alarm
	classifier ActionClassifier
	emitter    Emitter
	logger     *zap.Logger

	reg         *registry.Registry
	initialized bool
	alertMode   bool
	proMode     bool

	frameNo         uint64
	redetectCounter int
	fugitiveLimiter frameLimiter
	onboarding      onboardingSession
}

// NewEngine creates an engine over reg. Call Initialize before processing frames.
func NewEngine(opts Options, deps Deps, reg *registry.Registry) *Engine {
	if opts.Distance == nil {
		opts.Distance = facematch.EuclideanDistance
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = constants.DefaultTolerance
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = constants.DefaultAlertInterval
	}
	if opts.RedetectInterval <= 0 {
		opts.RedetectInterval = constants.DefaultRedetectInterval
	}
	if deps.Trackers == nil {
		deps.Trackers = tracking.NewTemplateFactory()
	}
	if deps.Alarm == nil {
		deps.Alarm = silentAlarm{}
	}
	if deps.Classifier == nil {
		deps.Classifier = StandingClassifier{}
	}
	if deps.Emitter == nil {
		deps.Emitter = EmitterFunc(func(Event) {})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if reg == nil {
		reg = registry.New(nil)
	}

	return &Engine{
		opts:            opts,
		faces:           deps.Faces,
		newTracker:      deps.Trackers,
		loader:          &registry.Loader{Faces: deps.Faces, Cache: deps.Cache},
		log:             deps.Log,
		snapshots:       deps.Snapshots,
		alarm:           deps.Alarm,
		classifier:      deps.Classifier,
		emitter:         deps.Emitter,
		logger:          deps.Logger,
		reg:             reg,
		fugitiveLimiter: frameLimiter{window: constants.FugitiveAlertWindow},
	}
}

// Initialize checks the face service and loads the roster. On failure a critical
// log message is emitted and the engine stays a no-op until initialized again.
func (e *Engine) Initialize(ctx context.Context, now time.Time) error {
	if e.faces == nil {
		e.emitLog("CRITICAL: Face service not configured.", now)
		return ErrNotInitialized
	}
	if p, ok := e.faces.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			e.emitLog("CRITICAL: Failed to reach face service.", now)
			e.logger.Error("face service unavailable", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrNotInitialized, err)
		}
	}

	e.initialized = true
	e.emitLog("System Initialized. Face service ready.", now)
	if _, err := e.ReloadTargets(ctx, now); err != nil {
		e.logger.Warn("initial target load failed", zap.Error(err))
	}
	return nil
}

// Initialized reports whether Initialize succeeded.
func (e *Engine) Initialized() bool {
	return e.initialized
}

// Registry exposes the engine's registry to the owning worker.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// ProcessFrame runs the per-frame pipeline and returns the annotated copy of frame.
// Before initialization the frame is passed through unannotated.
func (e *Engine) ProcessFrame(ctx context.Context, frame image.Image, now time.Time) *image.RGBA {
	if frame == nil || frame.Bounds().Empty() {
		return nil
	}
	canvas := fingerprint.Clone(frame)
	if !e.initialized {
		e.emitFrame(canvas, now)
		return canvas
	}

	e.frameNo++
	fd := &frameDetections{}

	e.watchFugitive(ctx, frame, canvas, fd, now)

	e.redetectCounter++
	if e.redetectCounter >= e.opts.RedetectInterval {
		e.redetectCounter = 0
		e.redetect(ctx, frame, canvas, fd, now)
	} else {
		e.updateTrackers(frame)
	}

	for _, t := range resolveOverlaps(e.reg.Selected(), constants.OverlapIoUThreshold) {
		e.logger.Debug("overlap suppressed", zap.String("target", t.Name), zap.Uint64("frame", e.frameNo))
	}

	e.evaluateTargets(ctx, canvas, now)

	if e.onboarding.active {
		drawLabel(canvas, 20, 50, "ONBOARDING MODE: Step "+strconv.Itoa(e.onboarding.step), colorYellow)
	}

	e.emitFrame(canvas, now)
	return canvas
}

// evaluateTargets runs the alert state machine and draws per-target overlays.
func (e *Engine) evaluateTargets(ctx context.Context, canvas *image.RGBA, now time.Time) {
	bounds := canvas.Bounds()
	for _, t := range e.reg.Selected() {
		d := evaluateAlert(t, e.alertMode, e.opts.AlertInterval, now)

		if t.Visible {
			body := facematch.BodyBox(t.Box, bounds.Dx(), bounds.Dy())
			action := e.classifier.Classify(nil)
			drawBox(canvas, body, colorGreen, 2)
			drawLabel(canvas, body.X, body.Y-10, t.Name+": "+action.String(), colorGreen)
			continue
		}

		if d.LogMissing {
			e.writeLog(ctx, sink.Record{
				Time:      now,
				Name:      t.Name,
				Action:    constants.ActionNotAvailable,
				Status:    sink.StatusMissing,
				ImagePath: constants.PathNotAvailable,
			})
		}

		if d.Countdown {
			c := colorYellow
			if d.Warning {
				c = colorRed
			}
			drawLabel(canvas, t.Box.X, t.Box.Y-30, t.Name+" Timeout: "+strconv.Itoa(d.RemainingSeconds())+"s", c)
		}
		if d.Overdue {
			drawLabel(canvas, t.Box.X, t.Box.Y-50, "ALERT!", colorRed)
		}
		if d.Tone {
			e.alarm.Play()
		}
		if d.Raise {
			path := e.snapshot(ctx, canvas, "ALERT_"+t.Name, now)
			e.writeLog(ctx, sink.Record{
				Time:       now,
				Name:       t.Name,
				Action:     constants.ActionNone,
				Status:     sink.StatusAlertTimeout,
				ImagePath:  path,
				Confidence: t.Confidence,
			})
			e.emitAlert("Alert: "+t.Name, now)
		}
	}
}

// ReloadTargets rebuilds the roster from the profile directory and returns its size.
func (e *Engine) ReloadTargets(ctx context.Context, now time.Time) (int, error) {
	if !e.initialized {
		return 0, ErrNotInitialized
	}

	res, err := e.loader.Load(ctx, e.opts.ProfilesDir, now)
	if err != nil {
		e.emitLog("Warning: could not reload targets: "+err.Error(), now)
		return 0, err
	}
	for _, w := range res.Warnings {
		e.logger.Warn("profile skipped", zap.Error(w))
		e.emitLog("Warning: "+w.Error(), now)
	}

	e.reg.Replace(res.Targets)
	e.emitLog("Targets reloaded: "+strconv.Itoa(e.reg.Len()), now)
	return e.reg.Len(), nil
}

// SetFugitive embeds the first face in img and activates the fugitive watch for it.
func (e *Engine) SetFugitive(ctx context.Context, name string, img image.Image, now time.Time) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	emb, _, err := registry.EmbedFirstFace(ctx, e.faces, img)
	if err != nil {
		e.emitLog("Error: no usable face in fugitive image.", now)
		return fmt.Errorf("embedding fugitive: %w", err)
	}

	e.reg.SetFugitive(name, emb)
	e.fugitiveLimiter.reset()
	e.emitLog("Fugitive Mode Activated: "+name, now)
	return nil
}

// ClearFugitive stops the fugitive watch.
func (e *Engine) ClearFugitive(now time.Time) {
	if e.reg.Fugitive() == nil {
		return
	}
	e.reg.ClearFugitive()
	e.emitLog("Fugitive Mode Deactivated", now)
}

// SetAlertMode toggles absence alerting.
func (e *Engine) SetAlertMode(on bool, now time.Time) {
	e.alertMode = on
	e.emitLog("Alert Mode: "+onOff(on), now)
}

// SetProMode toggles re-identification of unknown faces.
func (e *Engine) SetProMode(on bool, now time.Time) {
	e.proMode = on
	e.emitLog("Pro Mode: "+onOff(on), now)
}

// SelectTargets restricts tracking to names; an empty list selects everyone.
// Unknown names are returned.
func (e *Engine) SelectTargets(names []string) []string {
	return e.reg.Select(names)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func (e *Engine) snapshot(ctx context.Context, img image.Image, prefix string, now time.Time) string {
	if e.snapshots == nil {
		return constants.PathNotAvailable
	}
	path, err := e.snapshots.Save(ctx, img, prefix, now)
	if err != nil {
		e.logger.Warn("snapshot failed", zap.String("prefix", prefix), zap.Error(err))
		e.emitLog("Warning: snapshot failed: "+err.Error(), now)
		return constants.PathNotAvailable
	}
	return path
}

func (e *Engine) writeLog(ctx context.Context, rec sink.Record) {
	if e.log == nil {
		return
	}
	if err := e.log.Write(ctx, rec); err != nil {
		e.logger.Warn("event log write failed", zap.String("name", rec.Name), zap.String("status", rec.Status), zap.Error(err))
		e.emitLog("Warning: event log write failed: "+err.Error(), rec.Time)
	}
}

func (e *Engine) emit(ev Event, now time.Time) {
	base := newEvent(ev.Type, now)
	ev.ID, ev.Time = base.ID, base.Time
	if ev.FrameNo == 0 {
		ev.FrameNo = e.frameNo
	}
	e.emitter.Emit(ev)
}

func (e *Engine) emitLog(msg string, now time.Time) {
	e.logger.Info(msg)
	e.emit(Event{Type: EventLogMessage, Message: msg}, now)
}

func (e *Engine) emitAlert(msg string, now time.Time) {
	e.logger.Warn("alert raised", zap.String("message", msg), zap.Uint64("frame", e.frameNo))
	e.emit(Event{Type: EventAlertRaised, Message: msg}, now)
}

func (e *Engine) emitFrame(canvas *image.RGBA, now time.Time) {
	e.emit(Event{Type: EventFrameProcessed, Frame: canvas}, now)
}
