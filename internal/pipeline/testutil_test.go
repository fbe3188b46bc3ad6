package pipeline

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/registry"
	"github.com/kozaktomas/pose-guard/internal/sink"
	"github.com/kozaktomas/pose-guard/internal/tracking"
)

// fakeFaces returns a scripted set of faces for every image.
type fakeFaces struct {
	mu          sync.Mutex
	faces       []detection
	detectCalls int
	embedCalls  int
	pingErr     error
}

func (f *fakeFaces) set(dets ...detection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces = dets
}

func (f *fakeFaces) Detect(_ context.Context, _ image.Image) ([]facematch.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectCalls++
	boxes := make([]facematch.Box, len(f.faces))
	for i, d := range f.faces {
		boxes[i] = d.Box
	}
	return boxes, nil
}

func (f *fakeFaces) Embed(_ context.Context, _ image.Image, box facematch.Box) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	for _, d := range f.faces {
		if d.Box == box {
			return d.Embedding, nil
		}
	}
	return []float32{0}, nil
}

func (f *fakeFaces) Ping(context.Context) error {
	return f.pingErr
}

// scriptedTracker keeps its initial box while script.ok is true.
type scriptedTracker struct {
	script *trackerScript
	box    facematch.Box
}

type trackerScript struct {
	ok      bool
	initErr error
	inits   int
}

func (s *trackerScript) factory() tracking.Factory {
	return func() tracking.Tracker { return &scriptedTracker{script: s} }
}

func (t *scriptedTracker) Init(_ image.Image, box facematch.Box) error {
	t.box = box
	t.script.inits++
	return t.script.initErr
}

func (t *scriptedTracker) Update(image.Image) (facematch.Box, bool) {
	return t.box, t.script.ok
}

type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordedEvents) messages(typ EventType) []string {
	var out []string
	for _, e := range r.ofType(typ) {
		out = append(out, e.Message)
	}
	return out
}

type recordedLog struct {
	records []sink.Record
}

func (r *recordedLog) Write(_ context.Context, rec sink.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *recordedLog) statuses() []string {
	var out []string
	for _, rec := range r.records {
		out = append(out, rec.Name+":"+rec.Status)
	}
	return out
}

type fakeSnapshots struct {
	prefixes []string
}

func (f *fakeSnapshots) Save(_ context.Context, _ image.Image, prefix string, _ time.Time) (string, error) {
	f.prefixes = append(f.prefixes, prefix)
	return "snapshots/" + prefix + ".jpg", nil
}

type countingAlarm struct {
	plays int
}

func (a *countingAlarm) Play() { a.plays++ }

// harness bundles an initialized engine with its fakes.
type harness struct {
	engine    *Engine
	faces     *fakeFaces
	trackers  *trackerScript
	events    *recordedEvents
	log       *recordedLog
	snapshots *fakeSnapshots
	alarm     *countingAlarm
	now       time.Time
}

func newHarness(t *testing.T, opts Options, targets ...*registry.Target) *harness {
	t.Helper()
	h := &harness{
		faces:     &fakeFaces{},
		trackers:  &trackerScript{ok: true},
		events:    &recordedEvents{},
		log:       &recordedLog{},
		snapshots: &fakeSnapshots{},
		alarm:     &countingAlarm{},
		now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if opts.ProfilesDir == "" {
		opts.ProfilesDir = t.TempDir()
	}
	reg := registry.New(registry.NewPersonBook(0))
	reg.Replace(targets)

	h.engine = NewEngine(opts, Deps{
		Faces:     h.faces,
		Trackers:  h.trackers.factory(),
		Log:       h.log,
		Snapshots: h.snapshots,
		Alarm:     h.alarm,
		Emitter:   h.events,
	}, reg)
	h.engine.initialized = true
	return h
}

// step processes one frame and advances the clock by dt afterwards.
func (h *harness) step(dt time.Duration) *image.RGBA {
	out := h.engine.ProcessFrame(context.Background(), testFrame(), h.now)
	h.now = h.now.Add(dt)
	return out
}

func testFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 320, 240))
}

func target(name string, emb ...float32) *registry.Target {
	return registry.NewTarget(name, emb, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func det(x, y int, emb ...float32) detection {
	return detection{Box: facematch.Box{X: x, Y: y, W: 40, H: 40}, Embedding: emb}
}
