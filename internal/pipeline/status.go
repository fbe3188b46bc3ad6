package pipeline

import (
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

// TargetStatus is a read-only view of one target.
type TargetStatus struct {
	Name       string        `json:"name"`
	Selected   bool          `json:"selected"`
	Visible    bool          `json:"visible"`
	Tracking   bool          `json:"tracking"`
	Confidence float64       `json:"confidence"`
	Box        facematch.Box `json:"box"`
	Alerted    bool          `json:"alerted"`
	AbsentFor  float64       `json:"absent_for_sec,omitempty"`
}

// OnboardingStatus describes the active onboarding session.
type OnboardingStatus struct {
	Name string `json:"name"`
	Step int    `json:"step"`
}

// PersonStatus summarizes a pro-mode session identity.
type PersonStatus struct {
	ID        string    `json:"id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
}

// Status is a snapshot of the engine state, safe to hand to other goroutines.
type Status struct {
	Initialized bool              `json:"initialized"`
	AlertMode   bool              `json:"alert_mode"`
	ProMode     bool              `json:"pro_mode"`
	Fugitive    string            `json:"fugitive,omitempty"`
	Frames      uint64            `json:"frames"`
	Persons     int               `json:"persons"`
	People      []PersonStatus    `json:"people,omitempty"`
	Targets     []TargetStatus    `json:"targets"`
	Onboarding  *OnboardingStatus `json:"onboarding,omitempty"`
}

// Status copies the current engine state.
func (e *Engine) Status(now time.Time) Status {
	st := Status{
		Initialized: e.initialized,
		AlertMode:   e.alertMode,
		ProMode:     e.proMode,
		Frames:      e.frameNo,
		Persons:     e.reg.Persons().Len(),
		Targets:     make([]TargetStatus, 0, e.reg.Len()),
	}
	for _, r := range e.reg.Persons().Records() {
		st.People = append(st.People, PersonStatus{ID: r.ID, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen, Count: r.Count})
	}
	if f := e.reg.Fugitive(); f != nil {
		st.Fugitive = f.Name
	}
	if e.onboarding.active {
		st.Onboarding = &OnboardingStatus{Name: e.onboarding.name, Step: e.onboarding.step}
	}
	for _, t := range e.reg.Targets() {
		ts := TargetStatus{
			Name:       t.Name,
			Selected:   e.reg.IsSelected(t.Name),
			Visible:    t.Visible,
			Tracking:   t.Tracker != nil,
			Confidence: t.Confidence,
			Box:        t.Box,
			Alerted:    t.AlertTriggered,
		}
		if !t.Visible {
			ts.AbsentFor = now.Sub(t.LastAction).Seconds()
		}
		st.Targets = append(st.Targets, ts)
	}
	return st
}
