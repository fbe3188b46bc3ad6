package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

// commandFunc runs on the worker with exclusive access to the engine.
type commandFunc func(ctx context.Context, e *Engine, now time.Time) error

// message is either a frame or a command.
type message struct {
	frame   image.Image
	capture bool

	cmd   commandFunc
	reply chan error
}

// Stats counts frames seen by the service.
type Stats struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
}

// Service runs an Engine on a single worker goroutine. Frames and commands share
// one inbox and are handled strictly in delivery order.
type Service struct {
	engine *Engine
	reg    *registry.Registry
	events *Broadcaster
	logger *zap.Logger
	now    func() time.Time

	inbox   chan message
	capture atomic.Bool

	processed atomic.Uint64
	dropped   atomic.Uint64
	latest    atomic.Pointer[image.RGBA]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithQueueSize sets the inbox capacity.
func WithQueueSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.inbox = make(chan message, n)
		}
	}
}

// WithRegistry runs the engine over reg instead of a fresh registry.
func WithRegistry(reg *registry.Registry) ServiceOption {
	return func(s *Service) { s.reg = reg }
}

// NewService wires an engine built from opts and deps to a broadcaster.
// deps.Emitter is replaced by the service's broadcaster.
func NewService(opts Options, deps Deps, options ...ServiceOption) *Service {
	events := NewBroadcaster()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Service{
		events: events,
		logger: deps.Logger,
		now:    time.Now,
		inbox:  make(chan message, constants.FrameQueueSize),
	}
	for _, o := range options {
		o(s)
	}
	deps.Emitter = EmitterFunc(s.dispatch)
	s.engine = NewEngine(opts, deps, s.reg)
	return s
}

// dispatch keeps the latest annotated frame and forwards every event.
func (s *Service) dispatch(ev Event) {
	if ev.Type == EventFrameProcessed {
		if img, ok := ev.Frame.(*image.RGBA); ok {
			s.latest.Store(img)
		}
	}
	s.events.Emit(ev)
}

// Run initializes the engine and processes messages until ctx is done.
// A frame already being processed is finished before Run returns.
func (s *Service) Run(ctx context.Context) error {
	work := context.WithoutCancel(ctx)
	if err := s.engine.Initialize(work, s.now()); err != nil {
		s.logger.Error("engine initialization failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pipeline stopped", zap.Uint64("processed", s.processed.Load()), zap.Uint64("dropped", s.dropped.Load()))
			return nil
		case msg := <-s.inbox:
			s.handle(work, msg)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg message) {
	now := s.now()
	if msg.cmd != nil {
		msg.reply <- msg.cmd(ctx, s.engine, now)
		return
	}

	s.engine.ProcessFrame(ctx, msg.frame, now)
	s.processed.Add(1)

	if msg.capture || s.capture.Swap(false) {
		if err := s.engine.CaptureOnboarding(ctx, msg.frame, now); err != nil {
			s.logger.Info("onboarding capture rejected", zap.Error(err))
		}
	}
}

// Submit enqueues a frame without blocking. It returns false when the inbox is
// full and the frame was dropped.
func (s *Service) Submit(frame image.Image) bool {
	return s.enqueue(message{frame: frame})
}

// SubmitCapture enqueues a frame that is also used for the next onboarding capture.
func (s *Service) SubmitCapture(frame image.Image) bool {
	return s.enqueue(message{frame: frame, capture: true})
}

func (s *Service) enqueue(msg message) bool {
	select {
	case s.inbox <- msg:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// RequestCapture marks the next processed frame as the onboarding capture.
func (s *Service) RequestCapture() {
	s.capture.Store(true)
}

// do runs fn on the worker and waits for its result.
func (s *Service) do(ctx context.Context, fn commandFunc) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- message{cmd: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetFugitive activates the fugitive watch for the first face in img.
func (s *Service) SetFugitive(ctx context.Context, name string, img image.Image) error {
	return s.do(ctx, func(ctx context.Context, e *Engine, now time.Time) error {
		return e.SetFugitive(ctx, name, img, now)
	})
}

// ClearFugitive stops the fugitive watch.
func (s *Service) ClearFugitive(ctx context.Context) error {
	return s.do(ctx, func(_ context.Context, e *Engine, now time.Time) error {
		e.ClearFugitive(now)
		return nil
	})
}

// StartOnboarding begins enrolling name.
func (s *Service) StartOnboarding(ctx context.Context, name string) error {
	return s.do(ctx, func(_ context.Context, e *Engine, now time.Time) error {
		return e.StartOnboarding(name, now)
	})
}

// ReloadTargets rebuilds the roster from the profile directory.
func (s *Service) ReloadTargets(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func(ctx context.Context, e *Engine, now time.Time) error {
		var err error
		n, err = e.ReloadTargets(ctx, now)
		return err
	})
	return n, err
}

// SetAlertMode toggles absence alerting.
func (s *Service) SetAlertMode(ctx context.Context, on bool) error {
	return s.do(ctx, func(_ context.Context, e *Engine, now time.Time) error {
		e.SetAlertMode(on, now)
		return nil
	})
}

// SetProMode toggles re-identification of unknown faces.
func (s *Service) SetProMode(ctx context.Context, on bool) error {
	return s.do(ctx, func(_ context.Context, e *Engine, now time.Time) error {
		e.SetProMode(on, now)
		return nil
	})
}

// SelectTargets restricts tracking to names and returns the unknown ones.
func (s *Service) SelectTargets(ctx context.Context, names []string) ([]string, error) {
	var unknown []string
	err := s.do(ctx, func(_ context.Context, e *Engine, _ time.Time) error {
		unknown = e.SelectTargets(names)
		return nil
	})
	return unknown, err
}

// Status returns a snapshot of the engine state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func(_ context.Context, e *Engine, now time.Time) error {
		st = e.Status(now)
		return nil
	})
	return st, err
}

// Stats returns frame counters.
func (s *Service) Stats() Stats {
	return Stats{Processed: s.processed.Load(), Dropped: s.dropped.Load()}
}

// LatestFrame returns the most recent annotated frame, or nil.
func (s *Service) LatestFrame() *image.RGBA {
	return s.latest.Load()
}

// Subscribe returns a channel receiving every event.
func (s *Service) Subscribe() chan Event {
	return s.events.AddListener()
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Service) Unsubscribe(ch chan Event) {
	s.events.RemoveListener(ch)
}
