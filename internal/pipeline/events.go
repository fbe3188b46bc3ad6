package pipeline

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/pose-guard/internal/constants"
)

// EventType identifies an outbound notification.
type EventType string

const (
	EventFrameProcessed     EventType = "frame_processed"
	EventAlertRaised        EventType = "alert_raised"
	EventLogMessage         EventType = "log_message"
	EventOnboardingStep     EventType = "onboarding_step"
	EventOnboardingFinished EventType = "onboarding_finished"
)

// Event is a notification emitted by the engine.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Step    int       `json:"step,omitempty"`
	FrameNo uint64    `json:"frame,omitempty"`

	// Frame is the annotated image of a frame_processed event.
	Frame image.Image `json:"-"`
}

func newEvent(typ EventType, now time.Time) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: now}
}

// Emitter receives engine events. Emit must not block.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Broadcaster fans events out to listener channels.
// Slow listeners miss events instead of stalling the worker.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// NewBroadcaster creates a broadcaster without listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Emit sends an event to all listeners.
func (b *Broadcaster) Emit(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Len returns the number of listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
