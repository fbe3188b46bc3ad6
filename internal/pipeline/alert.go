package pipeline

import (
	"math"
	"time"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

// alertDecision is what one frame of the alert state machine asks the engine to do.
type alertDecision struct {
	// Countdown is shown while alert mode is on and the target is absent.
	Countdown bool
	Remaining time.Duration
	Warning   bool
	Overdue   bool

	Tone       bool
	Raise      bool
	LogMissing bool
}

// RemainingSeconds rounds the remaining time up to whole seconds for display.
func (d alertDecision) RemainingSeconds() int {
	return int(math.Ceil(d.Remaining.Seconds()))
}

// evaluateAlert advances the per-target alert state for one frame.
//
// A visible target resets its absence timer and both episode flags. An absent target
// with alert mode off logs MISSING once per episode. With alert mode on the absence
// time is compared to interval: past it, the tone sounds whenever the cooldown has
// elapsed, and the alert itself is raised once per episode.
func evaluateAlert(t *registry.Target, alertMode bool, interval time.Duration, now time.Time) alertDecision {
	if t.Visible {
		t.LastAction = now
		t.AlertTriggered = false
		t.MissingLogged = false
		return alertDecision{}
	}

	if !alertMode {
		if t.MissingLogged {
			return alertDecision{}
		}
		t.MissingLogged = true
		return alertDecision{LogMissing: true}
	}

	elapsed := now.Sub(t.LastAction)
	d := alertDecision{
		Countdown: true,
		Remaining: max(0, interval-elapsed),
	}
	d.Warning = d.Remaining < constants.WarningRemaining
	if elapsed <= interval {
		return d
	}

	d.Overdue = true
	if now.Sub(t.LastAlert) > constants.AlertCooldown {
		d.Tone = true
		t.LastAlert = now
		if !t.AlertTriggered {
			t.AlertTriggered = true
			d.Raise = true
		}
	}
	return d
}
