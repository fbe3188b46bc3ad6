package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/registry"
	"github.com/kozaktomas/pose-guard/internal/sink"
)

func TestEngine_RedetectCadence(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 3}, target("Ann", 0))
	h.faces.set(det(50, 50, 0.1))

	for loopN := 0; loopN < 7; loopN++ {
		h.step(100 * time.Millisecond)
	}

	// Frames 3 and 6 re-detect; the rest update trackers.
	if h.faces.detectCalls != 2 {
		t.Errorf("detect calls = %d, want 2", h.faces.detectCalls)
	}
	if h.trackers.inits != 2 {
		t.Errorf("tracker inits = %d, want 2", h.trackers.inits)
	}

	ann, _ := h.engine.reg.Target("Ann")
	if !ann.Visible || ann.Box != (facematch.Box{X: 50, Y: 50, W: 40, H: 40}) {
		t.Errorf("Ann = %+v", ann)
	}
	if ann.Confidence < 0.89 || ann.Confidence > 0.91 {
		t.Errorf("confidence = %v", ann.Confidence)
	}
}

func TestEngine_TrackerFailureHidesTarget(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 2}, target("Ann", 0))
	h.faces.set(det(50, 50, 0))

	h.step(time.Millisecond) // tracker bank: no tracker yet
	h.step(time.Millisecond) // re-detect
	ann, _ := h.engine.reg.Target("Ann")
	if !ann.Visible || ann.Tracker == nil {
		t.Fatal("Ann should be tracked after re-detection")
	}

	h.trackers.ok = false
	h.step(time.Millisecond)
	if ann.Visible || ann.Tracker != nil {
		t.Error("tracker failure must hide the target and drop its tracker")
	}
	if ann.Box != (facematch.Box{X: 50, Y: 50, W: 40, H: 40}) {
		t.Errorf("box should keep its last value, got %v", ann.Box)
	}
}

func TestEngine_TrackerInitFailureHidesTarget(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1, AlertInterval: 3 * time.Second}, target("Ann", 0))
	h.engine.SetAlertMode(true, h.now)
	h.trackers.initErr = errors.New("tracking box is empty")
	h.faces.set(det(0, 0, 0))

	h.step(time.Second)
	ann, _ := h.engine.reg.Target("Ann")
	if ann.Visible || ann.Tracker != nil {
		t.Fatalf("matched target without a tracker must not be visible: visible=%v tracker=%v", ann.Visible, ann.Tracker)
	}

	for loopN := 0; loopN < 4; loopN++ {
		h.step(time.Second)
	}
	if got := h.events.messages(EventAlertRaised); !cmp.Equal(got, []string{"Alert: Ann"}) {
		t.Errorf("alerts = %v, want the absence alert", got)
	}
}

func TestEngine_UnmatchedTargetKeepsVisibility(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0))
	h.faces.set(det(50, 50, 0))
	h.step(time.Millisecond)

	// Ann is no longer in the frame but her tracker still succeeds.
	h.faces.set(det(50, 50, 5))
	h.step(time.Millisecond)

	ann, _ := h.engine.reg.Target("Ann")
	if !ann.Visible {
		t.Error("a cycle without a match must not clear visibility")
	}
}

func TestEngine_OverlapResolvedAfterMatching(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0), target("Bob", 10))
	h.faces.set(det(50, 50, 0.3), detection{Box: facematch.Box{X: 52, Y: 50, W: 40, H: 40}, Embedding: []float32{10.1}})
	h.step(time.Millisecond)

	ann, _ := h.engine.reg.Target("Ann")
	bob, _ := h.engine.reg.Target("Bob")
	if ann.Visible || !bob.Visible {
		t.Errorf("lower-confidence Ann should be suppressed: ann=%v bob=%v", ann.Visible, bob.Visible)
	}
}

func TestEngine_AbsenceAlertOncePerEpisode(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1, AlertInterval: 10 * time.Second}, target("Ann", 0))
	h.engine.SetAlertMode(true, h.now)

	h.faces.set(det(50, 50, 0.2))
	h.step(time.Second)

	// Ann leaves: re-detection finds nobody, the tracker fails.
	h.faces.set()
	h.trackers.ok = false
	h.engine.opts.RedetectInterval = 1000
	for loopN := 0; loopN < 40; loopN++ {
		h.step(500 * time.Millisecond)
	}

	if got := h.events.messages(EventAlertRaised); !cmp.Equal(got, []string{"Alert: Ann"}) {
		t.Fatalf("alerts = %v, want exactly one", got)
	}
	if diff := cmp.Diff([]string{"ALERT_Ann"}, h.snapshots.prefixes); diff != "" {
		t.Errorf("snapshots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Ann:ALERT_TIMEOUT"}, h.log.statuses()); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
	if h.log.records[0].ImagePath != "snapshots/ALERT_Ann.jpg" || h.log.records[0].Action != "NONE" {
		t.Errorf("record = %+v", h.log.records[0])
	}
	// Overdue from 11s to 20s with tones at least 2s apart.
	if h.alarm.plays < 3 || h.alarm.plays > 5 {
		t.Errorf("alarm played %d times", h.alarm.plays)
	}

	// Ann returns, then leaves again: a second episode raises again.
	h.trackers.ok = true
	h.engine.opts.RedetectInterval = 1
	h.faces.set(det(50, 50, 0.2))
	h.step(time.Second)
	ann, _ := h.engine.reg.Target("Ann")
	if !ann.Visible || ann.AlertTriggered {
		t.Fatalf("Ann should be present with the alert cleared: %+v", ann)
	}

	h.faces.set()
	h.trackers.ok = false
	h.engine.opts.RedetectInterval = 1000
	for loopN := 0; loopN < 25; loopN++ {
		h.step(500 * time.Millisecond)
	}
	if n := len(h.events.ofType(EventAlertRaised)); n != 2 {
		t.Errorf("alerts after second episode = %d, want 2", n)
	}
}

func TestEngine_MissingLoggedOnceWithoutAlertMode(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1000}, target("Ann", 0))
	for loopN := 0; loopN < 10; loopN++ {
		h.step(time.Second)
	}
	if diff := cmp.Diff([]string{"Ann:MISSING"}, h.log.statuses()); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
	rec := h.log.records[0]
	if rec.Action != "N/A" || rec.ImagePath != "N/A" || rec.Confidence != 0 {
		t.Errorf("record = %+v", rec)
	}
	if n := len(h.events.ofType(EventAlertRaised)); n != 0 {
		t.Errorf("no alerts expected with alert mode off, got %d", n)
	}
}

func TestEngine_ProModeReidentifies(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 10))
	h.engine.SetProMode(true, h.now)

	h.faces.set(det(0, 0, 0), det(100, 0, 10))
	h.step(time.Second)
	persons := h.engine.reg.Persons()
	if persons.Len() != 1 {
		t.Fatalf("persons = %d, want 1 (Ann's face is claimed)", persons.Len())
	}

	h.faces.set(det(0, 0, 0.3))
	h.step(time.Second)
	if persons.Len() != 1 {
		t.Errorf("0.3 from Person_1 should match, persons = %d", persons.Len())
	}
	if rec := persons.Records()[0]; !rec.LastSeen.Equal(h.now.Add(-time.Second)) {
		t.Errorf("last seen not refreshed: %v", rec.LastSeen)
	}

	h.faces.set(det(0, 0, 0.6))
	h.step(time.Second)
	if persons.Len() != 2 || persons.Records()[1].ID != "Person_2" {
		t.Errorf("0.6 from Person_1 should create Person_2, got %d records", persons.Len())
	}

	var ids []string
	for _, p := range h.engine.Status(h.now).People {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"Person_1", "Person_2"}, ids); diff != "" {
		t.Errorf("status people (-want +got):\n%s", diff)
	}

	var detected []string
	for _, r := range h.log.records {
		if r.Status == sink.StatusDetected {
			detected = append(detected, r.Name)
		}
	}
	if diff := cmp.Diff([]string{"Person_1", "Person_2"}, detected); diff != "" {
		t.Errorf("DETECTED records (-want +got):\n%s", diff)
	}
}

func TestEngine_ProModeOffSkipsReidentification(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1})
	h.faces.set(det(0, 0, 0))
	h.step(time.Second)
	if h.engine.reg.Persons().Len() != 0 {
		t.Error("persons must not be created with pro mode off")
	}
}

func TestEngine_DeselectedTargetsIgnored(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0), target("Bob", 5))
	if unknown := h.engine.SelectTargets([]string{"Bob", "Zed"}); !cmp.Equal(unknown, []string{"Zed"}) {
		t.Errorf("unknown = %v", unknown)
	}
	h.faces.set(det(0, 0, 0))
	h.step(time.Second)

	ann, _ := h.engine.reg.Target("Ann")
	if ann.Visible {
		t.Error("deselected target must not be matched")
	}
	if diff := cmp.Diff([]string{"Bob:MISSING"}, h.log.statuses()); diff != "" {
		t.Errorf("only selected targets are evaluated (-want +got):\n%s", diff)
	}
}

func TestEngine_NotInitializedPassesFramesThrough(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0))
	h.engine.initialized = false
	h.faces.set(det(0, 0, 0))

	out := h.step(time.Second)
	if out == nil {
		t.Fatal("frame should still be emitted")
	}
	if h.faces.detectCalls != 0 {
		t.Error("face service must not be called before initialization")
	}
	if n := len(h.events.ofType(EventFrameProcessed)); n != 1 {
		t.Errorf("frame events = %d, want 1", n)
	}
	if _, err := h.engine.ReloadTargets(context.Background(), h.now); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReloadTargets() = %v, want ErrNotInitialized", err)
	}
}

func TestEngine_Initialize(t *testing.T) {
	dir := t.TempDir()
	if _, err := registry.SaveProfile(dir, "Ann", image.NewRGBA(image.Rect(0, 0, 150, 150))); err != nil {
		t.Fatal(err)
	}

	faces := &fakeFaces{pingErr: errors.New("connection refused")}
	faces.set(det(10, 10, 0.5))
	events := &recordedEvents{}
	e := NewEngine(Options{ProfilesDir: dir}, Deps{Faces: faces, Emitter: events}, nil)

	if err := e.Initialize(context.Background(), time.Now()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Initialize() = %v, want ErrNotInitialized", err)
	}
	if e.Initialized() {
		t.Error("engine must stay uninitialized when the face service is down")
	}

	faces.pingErr = nil
	if err := e.Initialize(context.Background(), time.Now()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	want := []string{
		"CRITICAL: Failed to reach face service.",
		"System Initialized. Face service ready.",
		"Targets reloaded: 1",
	}
	if diff := cmp.Diff(want, events.messages(EventLogMessage)); diff != "" {
		t.Errorf("log messages (-want +got):\n%s", diff)
	}
	if _, ok := e.Registry().Target("Ann"); !ok {
		t.Error("Ann should be loaded")
	}
}

func TestEngine_InitializeWithoutFaceService(t *testing.T) {
	events := &recordedEvents{}
	e := NewEngine(Options{}, Deps{Emitter: events}, nil)
	if err := e.Initialize(context.Background(), time.Now()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Initialize() = %v", err)
	}
	if got := events.messages(EventLogMessage); len(got) != 1 || got[0] != "CRITICAL: Face service not configured." {
		t.Errorf("messages = %v", got)
	}
}

func TestEngine_Status(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0), target("Bob", 5))
	h.engine.SetAlertMode(true, h.now)
	h.engine.reg.SetFugitive("Eve", []float32{9})
	h.faces.set(det(20, 20, 0))
	h.step(2 * time.Second)

	st := h.engine.Status(h.now)
	if !st.Initialized || !st.AlertMode || st.ProMode || st.Fugitive != "Eve" || st.Frames != 1 {
		t.Errorf("status = %+v", st)
	}
	want := []TargetStatus{
		{Name: "Ann", Selected: true, Visible: true, Tracking: true, Confidence: 1, Box: facematch.Box{X: 20, Y: 20, W: 40, H: 40}},
		{Name: "Bob", Selected: true, AbsentFor: 2},
	}
	if diff := cmp.Diff(want, st.Targets); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
}

func TestEngine_AnnotatesFrame(t *testing.T) {
	h := newHarness(t, Options{RedetectInterval: 1}, target("Ann", 0))
	h.engine.reg.SetFugitive("Eve", []float32{7})
	h.faces.set(det(100, 100, 0), det(20, 20, 7))

	out := h.step(time.Second)
	red := color.RGBA{255, 0, 0, 255}
	if got := out.RGBAAt(21, 21); got != red {
		t.Errorf("fugitive box pixel = %v, want red", got)
	}
	// Ann's body box: center 120 +- 120, top at 80.
	if got := out.RGBAAt(0, 85); got != colorGreen {
		t.Errorf("body box pixel = %v, want green", got)
	}
	if got := testFrame().RGBAAt(21, 21); got == red {
		t.Error("input frame must not be modified")
	}
}

func TestEngine_EmptyFrameIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	if out := h.engine.ProcessFrame(context.Background(), image.NewRGBA(image.Rectangle{}), h.now); out != nil {
		t.Error("empty frame should be ignored")
	}
	if len(h.events.events) != 0 {
		t.Error("no events expected for an empty frame")
	}
}
