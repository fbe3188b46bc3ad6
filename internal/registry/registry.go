// Package registry holds the identities the guard knows about: enrolled targets,
// the optional fugitive profile and the session-scoped unknown persons.
//
// A Registry is owned by a single pipeline worker and is not safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/tracking"
)

// ErrDuplicateTarget is returned when a target name is already registered.
var ErrDuplicateTarget = errors.New("target already registered")

// Target is one enrolled person the guard tracks and alerts on.
type Target struct {
	Name      string
	Embedding []float32

	// Tracker is replaced on every re-detection match and dropped on tracking failure.
	Tracker    tracking.Tracker
	Box        facematch.Box
	Visible    bool
	Confidence float64

	LastAction     time.Time // anchors the absence timer
	LastAlert      time.Time // cooldown anchor
	AlertTriggered bool
	MissingLogged  bool
}

// NewTarget creates a non-visible target whose absence timer starts at now.
func NewTarget(name string, embedding []float32, now time.Time) *Target {
	return &Target{Name: name, Embedding: embedding, LastAction: now}
}

// Hide marks the target invisible and discards its tracker.
func (t *Target) Hide() {
	t.Visible = false
	t.Tracker = nil
}

// Fugitive is the single watch-list face.
type Fugitive struct {
	Name      string
	Embedding []float32
	Active    bool
}

// Registry keeps targets in a fixed order. That order decides who wins
// matching and overlap ties, so it never depends on map iteration.
type Registry struct {
	targets  []*Target
	byName   map[string]*Target
	selected map[string]bool
	fugitive *Fugitive
	persons  *PersonBook
}

// New creates an empty registry using persons for pro-mode records.
func New(persons *PersonBook) *Registry {
	if persons == nil {
		persons = NewPersonBook(0)
	}
	return &Registry{
		byName:   make(map[string]*Target),
		selected: make(map[string]bool),
		persons:  persons,
	}
}

// Add appends a target and selects it.
func (r *Registry) Add(t *Target) error {
	if _, ok := r.byName[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, t.Name)
	}
	r.targets = append(r.targets, t)
	r.byName[t.Name] = t
	r.selected[t.Name] = true
	return nil
}

// Replace drops every target and registers targets in the given order, all selected.
// Duplicate names keep the first occurrence. The fugitive and person records survive.
func (r *Registry) Replace(targets []*Target) {
	r.targets = nil
	r.byName = make(map[string]*Target, len(targets))
	r.selected = make(map[string]bool, len(targets))
	for _, t := range targets {
		_ = r.Add(t)
	}
}

// Target looks up a target by name.
func (r *Registry) Target(name string) (*Target, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Targets returns all targets in registry order.
func (r *Registry) Targets() []*Target {
	return r.targets
}

// Len returns the number of targets.
func (r *Registry) Len() int {
	return len(r.targets)
}

// Selected returns the selected targets in registry order.
func (r *Registry) Selected() []*Target {
	out := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		if r.selected[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// IsSelected reports whether name is tracked and evaluated.
func (r *Registry) IsSelected(name string) bool {
	return r.selected[name]
}

// Select restricts tracking to names. An empty list selects every target.
// Unknown names are returned and otherwise ignored; deselected targets lose their tracker.
func (r *Registry) Select(names []string) []string {
	var unknown []string
	if len(names) == 0 {
		for _, t := range r.targets {
			r.selected[t.Name] = true
		}
		return nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	for _, t := range r.targets {
		r.selected[t.Name] = want[t.Name]
		if !want[t.Name] {
			t.Hide()
		}
	}
	return unknown
}

// SetFugitive installs an active fugitive profile, replacing any previous one.
func (r *Registry) SetFugitive(name string, embedding []float32) {
	r.fugitive = &Fugitive{Name: name, Embedding: embedding, Active: true}
}

// ClearFugitive deactivates the fugitive watch.
func (r *Registry) ClearFugitive() {
	if r.fugitive != nil {
		r.fugitive.Active = false
	}
}

// Fugitive returns the active fugitive profile, or nil.
func (r *Registry) Fugitive() *Fugitive {
	if r.fugitive == nil || !r.fugitive.Active {
		return nil
	}
	return r.fugitive
}

// Persons returns the pro-mode person book.
func (r *Registry) Persons() *PersonBook {
	return r.persons
}
