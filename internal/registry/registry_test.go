package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/tracking"
)

func names(targets []*Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Name
	}
	return out
}

func TestRegistry_AddAndOrder(t *testing.T) {
	now := time.Unix(1000, 0)
	r := New(nil)
	for _, n := range []string{"carol", "alice", "bob"} {
		if err := r.Add(NewTarget(n, []float32{1}, now)); err != nil {
			t.Fatalf("Add(%s): %v", n, err)
		}
	}

	if diff := cmp.Diff([]string{"carol", "alice", "bob"}, names(r.Targets())); diff != "" {
		t.Errorf("registry order mismatch (-want +got):\n%s", diff)
	}
	if err := r.Add(NewTarget("alice", nil, now)); !errors.Is(err, ErrDuplicateTarget) {
		t.Errorf("expected ErrDuplicateTarget, got %v", err)
	}
	if got, ok := r.Target("bob"); !ok || got.LastAction != now {
		t.Errorf("Target(bob) = %v, %v", got, ok)
	}
}

func TestRegistry_ReplaceKeepsFugitiveAndPersons(t *testing.T) {
	r := New(NewPersonBook(0))
	r.SetFugitive("mallory", []float32{1, 2})
	r.Persons().Observe([]float32{0}, facematch.EuclideanDistance, 0.5, time.Now())
	_ = r.Add(NewTarget("old", nil, time.Now()))

	r.Replace([]*Target{NewTarget("a", nil, time.Now()), NewTarget("b", nil, time.Now()), NewTarget("a", nil, time.Now())})

	if diff := cmp.Diff([]string{"a", "b"}, names(r.Targets())); diff != "" {
		t.Errorf("targets after replace (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names(r.Selected())); diff != "" {
		t.Errorf("reload must auto-select all targets (-want +got):\n%s", diff)
	}
	if r.Fugitive() == nil || r.Fugitive().Name != "mallory" {
		t.Error("fugitive should survive a reload")
	}
	if r.Persons().Len() != 1 {
		t.Error("person records should survive a reload")
	}
}

func TestRegistry_Select(t *testing.T) {
	r := New(nil)
	for _, n := range []string{"a", "b", "c"} {
		_ = r.Add(NewTarget(n, nil, time.Now()))
	}
	a, _ := r.Target("a")
	a.Visible = true
	a.Tracker = tracking.NewTemplateTracker()

	unknown := r.Select([]string{"c", "zed", "b"})
	if diff := cmp.Diff([]string{"zed"}, unknown); diff != "" {
		t.Errorf("unknown names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "c"}, names(r.Selected())); diff != "" {
		t.Errorf("selected keeps registry order (-want +got):\n%s", diff)
	}
	if a.Visible || a.Tracker != nil {
		t.Error("deselected target should be hidden and lose its tracker")
	}

	r.Select(nil)
	if len(r.Selected()) != 3 {
		t.Errorf("empty selection should select all, got %v", names(r.Selected()))
	}
}

func TestRegistry_Fugitive(t *testing.T) {
	r := New(nil)
	if r.Fugitive() != nil {
		t.Fatal("no fugitive expected initially")
	}
	r.SetFugitive("eve", []float32{0.1})
	if f := r.Fugitive(); f == nil || !f.Active || f.Name != "eve" {
		t.Fatalf("Fugitive() = %+v", f)
	}
	r.ClearFugitive()
	if r.Fugitive() != nil {
		t.Error("cleared fugitive should not be returned")
	}
}
