package handlers

import (
	"context"
	"image"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pose-guard/internal/pipeline"
)

// fakeGuard records the calls the handlers make.
type fakeGuard struct {
	mu sync.Mutex

	full      bool
	submitted int
	captures  int
	requested int
	latest    *image.RGBA
	status    pipeline.Status
	stats     pipeline.Stats
	err       error

	alert, pro *bool
	fugitive   string
	onboarding string
	reloads    int
	targets    int
	selected   []string

	events chan pipeline.Event
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{events: make(chan pipeline.Event, 8)}
}

func (g *fakeGuard) Submit(image.Image) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.full {
		return false
	}
	g.submitted++
	return true
}

func (g *fakeGuard) SubmitCapture(img image.Image) bool {
	g.mu.Lock()
	g.captures++
	g.mu.Unlock()
	return g.Submit(img)
}

func (g *fakeGuard) RequestCapture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requested++
}

func (g *fakeGuard) LatestFrame() *image.RGBA { return g.latest }

func (g *fakeGuard) Stats() pipeline.Stats { return g.stats }

func (g *fakeGuard) Status(context.Context) (pipeline.Status, error) {
	return g.status, g.err
}

func (g *fakeGuard) SetAlertMode(_ context.Context, on bool) error {
	g.alert = &on
	g.status.AlertMode = on
	return g.err
}

func (g *fakeGuard) SetProMode(_ context.Context, on bool) error {
	g.pro = &on
	g.status.ProMode = on
	return g.err
}

func (g *fakeGuard) SetFugitive(_ context.Context, name string, _ image.Image) error {
	if g.err != nil {
		return g.err
	}
	g.fugitive = name
	return nil
}

func (g *fakeGuard) ClearFugitive(context.Context) error {
	g.fugitive = ""
	return g.err
}

func (g *fakeGuard) StartOnboarding(_ context.Context, name string) error {
	if g.err != nil {
		return g.err
	}
	g.onboarding = name
	return nil
}

func (g *fakeGuard) ReloadTargets(context.Context) (int, error) {
	g.reloads++
	return g.targets, g.err
}

func (g *fakeGuard) SelectTargets(_ context.Context, names []string) ([]string, error) {
	g.selected = names
	var unknown []string
	for _, n := range names {
		if n == "Nobody" {
			unknown = append(unknown, n)
		}
	}
	return unknown, g.err
}

func (g *fakeGuard) Subscribe() chan pipeline.Event { return g.events }

func (g *fakeGuard) Unsubscribe(chan pipeline.Event) {}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
